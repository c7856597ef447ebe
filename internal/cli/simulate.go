package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chaostheorist/chaos/internal/domain"
)

func init() {
	simStartCmd.Flags().StringVar(&simScenario, "scenario", "", "Scenario id")
	simStartCmd.Flags().StringArrayVar(&simSettings, "set", nil, "Initial parameter value as PARAM=VALUE (repeatable)")
	simCancelCmd.Flags().StringVar(&simReason, "reason", "cancelled by operator", "Reason recorded on the run")
	simListCmd.Flags().IntVar(&simLimit, "limit", 20, "Maximum runs to list")

	simulateCmd.AddCommand(simStartCmd, simGetCmd, simCancelCmd, simListCmd)
	rootCmd.AddCommand(simulateCmd)
}

var (
	simScenario string
	simSettings []string
	simReason   string
	simLimit    int
)

var simulateCmd = &cobra.Command{
	Use:     "simulate",
	Aliases: []string{"sim"},
	Short:   "Start and inspect simulation runs",
}

var simStartCmd = &cobra.Command{
	Use:   "start SYSTEM",
	Short: "Start a simulation run",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimStart,
}

var simGetCmd = &cobra.Command{
	Use:   "get RUN",
	Short: "Show a simulation run",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimGet,
}

var simCancelCmd = &cobra.Command{
	Use:   "cancel RUN",
	Short: "Cancel a running simulation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimCancel,
}

var simListCmd = &cobra.Command{
	Use:   "list SYSTEM",
	Short: "List recent runs of a system (local backend only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimList,
}

func runSimStart(cmd *cobra.Command, args []string) error {
	d, err := bootConsole(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	sys, err := visibleSystem(d.Store.State(), args[0])
	if err != nil {
		return err
	}
	initial, err := parseSettings(sys, simSettings)
	if err != nil {
		return err
	}

	run, err := d.Console.StartSimulation(cmd.Context(), domain.StartRequest{
		SystemID:     sys.ID,
		ScenarioID:   simScenario,
		InitiatedBy:  d.Config.Console.CurrentUser,
		InitialState: initial,
	})
	if err != nil {
		return err
	}
	printRun(run)
	return nil
}

func runSimGet(cmd *cobra.Command, args []string) error {
	d, err := bootConsole(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	run, err := d.Console.RefreshSimulation(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printRun(run)
	return nil
}

func runSimCancel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	run, err := d.Runs.CancelSimulation(cmd.Context(), args[0], simReason)
	if err != nil {
		return err
	}
	printRun(run)
	return nil
}

func runSimList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	if d.Catalog == nil {
		return fmt.Errorf("listing runs needs the local backend (backend.mode = %q)", cfg.Backend.Mode)
	}
	runs, err := d.Catalog.ListSimulations(cmd.Context(), args[0], simLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs yet. Start one with 'chaos simulate start " + args[0] + "'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSCENARIO\tBY\tSTARTED\tDURATION")
	for _, r := range runs {
		dur := "-"
		if r.IsTerminal() {
			dur = r.Duration().String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, r.ScenarioID, r.InitiatedBy, humanize.Time(r.StartTime), dur)
	}
	return w.Flush()
}

// parseSettings turns PARAM=VALUE flags into validated parameter settings.
func parseSettings(sys domain.ChaoticSystemDefinition, raw []string) ([]domain.ParameterSetting, error) {
	settings := make([]domain.ParameterSetting, 0, len(raw))
	for _, kv := range raw {
		id, text, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("--set %q: want PARAM=VALUE", kv)
		}
		p, found := sys.Parameter(id)
		if !found {
			return nil, domain.NotFound("parameter", id)
		}
		v, err := domain.ParseValue(p.DataType, text)
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", id, err)
		}
		if v, err = p.ValidateValue(v); err != nil {
			return nil, err
		}
		settings = append(settings, domain.ParameterSetting{ParameterID: id, Value: v})
	}
	return settings, nil
}

func printRun(r domain.SimulationRun) {
	fmt.Printf("Run:          %s\n", r.ID)
	fmt.Printf("System:       %s\n", r.SystemID)
	fmt.Printf("Status:       %s\n", r.Status)
	fmt.Printf("Initiated by: %s\n", r.InitiatedBy)
	fmt.Printf("Started:      %s (%s)\n", r.StartTime.Format("2006-01-02 15:04:05"), humanize.Time(r.StartTime))
	if r.IsTerminal() {
		fmt.Printf("Duration:     %s\n", r.Duration())
	}
	for _, s := range r.InitialState {
		fmt.Printf("  set %s = %s\n", s.ParameterID, s.Value)
	}
	if len(r.Events) > 0 {
		fmt.Println("Events:")
		for _, e := range r.Events {
			fmt.Printf("  %s  %-10s %s\n", e.Timestamp.Format("15:04:05"), e.Type, e.Description)
		}
	}
}
