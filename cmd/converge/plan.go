package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/converge/converge/plan"
	"github.com/converge/converge/state"
	"github.com/spf13/cobra"
)

var planCommand = &cobra.Command{
	Use:   "plan [dir]",
	Short: "Show changes required to reach the configured state",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			args = []string{"."}
		}

		_, _, g := loadGraph(args[0])

		store, done, err := openStore(cmd)
		if err != nil {
			fatal(err)
		}
		defer done()

		ctx := context.Background()
		proj := projectName(cmd)

		unlock := acquireLock(ctx, store, proj)
		defer unlock()

		recs, err := store.ListResources(ctx, proj)
		if err != nil {
			fatal(err)
		}

		p, err := plan.Build(g, recs)
		if err != nil {
			fatal(err)
		}
		if err := p.Render(os.Stdout); err != nil {
			fatal(err)
		}
	},
}

func init() {
	Converge.AddCommand(planCommand)
}

// acquireLock takes the project lock, exiting with a message if another run
// holds it. The returned func releases the lock.
func acquireLock(ctx context.Context, store *state.Store, proj string) func() {
	token, err := store.Lock(ctx, proj)
	if err != nil {
		if held, ok := err.(*state.LockHeldError); ok {
			fmt.Fprintln(os.Stderr, held.Error())
			os.Exit(1)
		}
		fatal(err)
	}
	return func() {
		if err := store.Unlock(ctx, proj, token); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}
