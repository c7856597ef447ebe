package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaostheorist/chaos/internal/domain"
)

func init() {
	rootCmd.AddCommand(setCmd)
}

var setCmd = &cobra.Command{
	Use:   "set SYSTEM PARAMETER VALUE",
	Short: "Write a parameter value and show the refreshed system",
	Long: `Write one parameter value. The value is parsed according to the
parameter's data type and checked against its range or enum members before
it is sent.`,
	Args: cobra.ExactArgs(3),
	RunE: runSet,
}

func runSet(cmd *cobra.Command, args []string) error {
	systemID, parameterID, text := args[0], args[1], args[2]

	d, err := bootConsole(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	sys, err := visibleSystem(d.Store.State(), systemID)
	if err != nil {
		return err
	}
	p, ok := sys.Parameter(parameterID)
	if !ok {
		return domain.NotFound("parameter", parameterID)
	}
	value, err := domain.ParseValue(p.DataType, text)
	if err != nil {
		return fmt.Errorf("%s expects %s: %w", parameterID, formatRange(*p), err)
	}

	before := p.CurrentValue
	updated, err := d.Console.UpdateParameter(cmd.Context(), systemID, parameterID, value)
	if err != nil {
		return err
	}

	after, _ := updated.Parameter(parameterID)
	fmt.Printf("%s/%s: %s -> %s %s\n", systemID, parameterID, before, after.CurrentValue, after.Unit)
	fmt.Printf("hash: %s\n", updated.ContentHash)
	return nil
}
