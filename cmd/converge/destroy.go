package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/converge/converge/apply"
	"github.com/converge/converge/decoder"
	"github.com/converge/converge/graph"
	"github.com/converge/converge/plan"
	"github.com/converge/converge/provider/inmem"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var destroyCommand = &cobra.Command{
	Use:   "destroy",
	Short: "Destroy all resources recorded in state",
	Args:  cobra.MaximumNArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		parallelism, err := cmd.Flags().GetUint("parallelism")
		if err != nil {
			log.Fatalf("Get parallelism: %v", err)
		}
		autoApprove, err := cmd.Flags().GetBool("auto-approve")
		if err != nil {
			log.Fatalf("Get auto-approve: %v", err)
		}

		store, done, err := openStore(cmd)
		if err != nil {
			fatal(err)
		}
		defer done()

		ctx := signalContext(context.Background())
		proj := projectName(cmd)

		unlock := acquireLock(ctx, store, proj)
		defer unlock()

		recs, err := store.ListResources(ctx, proj)
		if err != nil {
			fatal(err)
		}

		p, err := plan.DestroyAll(recs)
		if err != nil {
			fatal(err)
		}
		if p.Empty() {
			fmt.Println("No resources to destroy.")
			return
		}
		if err := p.Render(os.Stdout); err != nil {
			fatal(err)
		}

		if !autoApprove && !confirm("Destroy all resources?") {
			fmt.Println("Destroy cancelled.")
			return
		}

		// Destroying everything walks an empty desired graph.
		g, err := graph.Build(&decoder.Config{})
		if err != nil {
			fatal(err)
		}

		exec := &apply.Executor{
			Provider:    inmem.New(registry()),
			State:       store,
			Parallelism: parallelism,
			Logger:      newLogger(cmd),
		}
		res, err := exec.Apply(ctx, proj, g, p)
		if err != nil {
			fatal(err)
		}

		outputs, err := store.Outputs(ctx, proj)
		if err != nil {
			fatal(err)
		}
		for name := range outputs {
			if err := store.DeleteOutput(ctx, proj, name); err != nil {
				fatal(err)
			}
		}

		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("%s Resources: %d destroyed.\n", red("Destroy complete!"), res.Destroyed)
	},
}

func init() {
	destroyCommand.Flags().Uint("parallelism", 0, "Maximum concurrent operations. 0 uses the default.")
	destroyCommand.Flags().Bool("auto-approve", false, "Skip interactive confirmation")

	Converge.AddCommand(destroyCommand)
}

func confirm(prompt string) bool {
	fmt.Printf("%s Only 'yes' is accepted: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}
