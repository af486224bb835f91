package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/cimillas/monei-reconciler/internal/statuscode"
	"github.com/spf13/cobra"
)

func codesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codes [CODE...]",
		Short: "Describe MONEI status codes",
		Long:  "Print the description of each given status code, or the whole table when none is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := statuscode.Default()
			codes := args
			if len(codes) == 0 {
				codes = table.Codes()
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tCATEGORY\tMESSAGE")
			for _, c := range codes {
				c = strings.ToUpper(strings.TrimSpace(c))
				fmt.Fprintf(w, "%s\t%s\t%s\n", c, statuscode.CategoryOf(c), table.Message(c))
			}
			return w.Flush()
		},
	}
}
