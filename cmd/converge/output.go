package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var outputCommand = &cobra.Command{
	Use:   "output [name]",
	Short: "Show output values from the last apply",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, done, err := openStore(cmd)
		if err != nil {
			fatal(err)
		}
		defer done()

		ctx := context.Background()
		proj := projectName(cmd)

		outputs, err := store.Outputs(ctx, proj)
		if err != nil {
			fatal(err)
		}

		if len(args) == 1 {
			val, ok := outputs[args[0]]
			if !ok {
				fmt.Fprintf(os.Stderr, "Output %q not found\n", args[0])
				os.Exit(1)
			}
			fmt.Println(formatValue(val))
			return
		}

		if len(outputs) == 0 {
			fmt.Fprintln(os.Stderr, "No outputs. Run apply first.")
			os.Exit(1)
		}
		printOutputs(outputs)
	},
}

func init() {
	Converge.AddCommand(outputCommand)
}
