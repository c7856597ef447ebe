package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(systemsCmd)
}

var systemsCmd = &cobra.Command{
	Use:     "systems",
	Aliases: []string{"ls"},
	Short:   "List the systems you are allowed to see",
	RunE:    runSystems,
}

func runSystems(cmd *cobra.Command, args []string) error {
	d, err := bootConsole(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	st := d.Store.State()
	if len(st.Systems) == 0 {
		fmt.Println("No systems visible. Check console.allowed_systems in your config.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, " \tID\tNAME\tSTATUS\tPARAMS\tMODIFIED")
	for _, s := range st.Systems {
		marker := " "
		if s.ID == st.SelectedSystemID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			marker,
			s.ID,
			s.Name,
			s.Status,
			len(s.Parameters),
			humanize.Time(s.LastModified),
		)
	}
	return w.Flush()
}
