package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chaostheorist/chaos/internal/infra/analysis"
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzePropose, "propose", "", "Propose an intervention on this leverage point after the analysis")
	rootCmd.AddCommand(analyzeCmd)
}

var analyzePropose string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [SYSTEM]",
	Short: "Rank the leverage points of a system",
	Long: `Run the leverage-point analysis for a system (the selected one when
omitted) and print the candidates, best first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	d, err := bootConsole(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	systemID := d.Store.State().SelectedSystemID
	if len(args) == 1 {
		systemID = args[0]
		d.Console.SelectSystem(systemID)
	}
	if _, err := visibleSystem(d.Store.State(), systemID); err != nil {
		return err
	}

	stop := watchLoading(d.Store, os.Stderr)
	err = d.Console.FetchLeveragePoints(cmd.Context(), systemID)
	stop()
	if err != nil {
		return err
	}

	a := d.Store.State().Analyses[systemID]
	if a.Error != "" {
		return errors.New(a.Error)
	}
	if len(a.LeveragePoints) == 0 {
		fmt.Println("No leverage points identified.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tACTION\tSCORE\tPROBABILITY\tCONFIDENCE\tEFFORT\tCOST")
	for i, lp := range a.LeveragePoints {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.0f%%\t%.0f%%\t%s\t%s\n",
			i+1,
			lp.ID,
			lp.Action,
			analysis.Score(lp),
			lp.OutcomeProbability*100,
			lp.PredictionConfidence*100,
			lp.ImplementationEffort,
			lp.Cost,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if analyzePropose == "" {
		return nil
	}
	p, err := d.Console.ProposeIntervention(systemID, analyzePropose)
	if err != nil {
		return err
	}
	fmt.Printf("\nIntervention on %s proposed by %s at %s\n", p.LeveragePointID, p.ProposedBy, p.ProposedAt.Format("15:04:05"))
	return nil
}
