package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chaostheorist/chaos/internal/domain"
)

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show SYSTEM",
	Short: "Show parameters, metrics and feedback loops of a system",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	d, err := bootConsole(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	sys, err := visibleSystem(d.Store.State(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Name:         %s\n", sys.Name)
	fmt.Printf("ID:           %s\n", sys.ID)
	fmt.Printf("Status:       %s\n", sys.Status)
	fmt.Printf("Model:        %s\n", sys.ModelVersion)
	fmt.Printf("Owner:        %s\n", sys.OwnerID)
	fmt.Printf("Hash:         %s\n", sys.ContentHash)
	fmt.Printf("Modified:     %s (%s)\n", sys.LastModified.Format("2006-01-02 15:04:05"), humanize.Time(sys.LastModified))
	if sys.Description != "" {
		fmt.Printf("\n%s\n", sys.Description)
	}

	if key := sys.KeyParameters(); len(key) > 0 {
		fmt.Println("\nKey parameters:")
		for _, p := range key {
			fmt.Printf("  %-28s %s %s\n", p.Name, p.CurrentValue, p.Unit)
		}
	}

	fmt.Println("\nParameters:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tVALUE\tRANGE\tSECURITY\tLEVERAGE")
	for _, p := range sys.Parameters {
		lev := ""
		if p.IsLeverageCandidate {
			lev = "yes"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", p.ID, p.CurrentValue, formatRange(p), p.SecurityLevel, lev)
	}
	w.Flush()

	if len(sys.Metrics) > 0 {
		fmt.Println("\nMetrics:")
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\tVALUE\tALERT\tQUALITY")
		for _, m := range sys.Metrics {
			alert := m.Breach()
			if alert == domain.AlertNone {
				alert = "-"
			}
			fmt.Fprintf(w, "  %s\t%s %s\t%s\t%.0f%%\n", m.ID, m.CurrentValue, m.Unit, alert, m.DataQualityScore*100)
		}
		w.Flush()
	}

	if len(sys.FeedbackLoops) > 0 {
		fmt.Println("\nFeedback loops:")
		for _, l := range sys.FeedbackLoops {
			fmt.Printf("  %-24s %s -> %s (%s, strength %.2f)\n", l.Name, l.SourceID, l.TargetID, l.Type, l.Strength)
		}
	}

	return nil
}
