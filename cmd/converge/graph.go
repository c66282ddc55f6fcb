package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var graphCommand = &cobra.Command{
	Use:   "graph [dir]",
	Short: "Print the dependency graph in dot format",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			args = []string{"."}
		}

		_, _, g := loadGraph(args[0])

		dot, err := g.MarshalDOT("converge")
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(dot))
	},
}

func init() {
	Converge.AddCommand(graphCommand)
}
