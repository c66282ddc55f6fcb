package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/converge/converge/resource"
	"github.com/converge/converge/state"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var taintCommand = &cobra.Command{
	Use:   "taint ADDRESS",
	Short: "Mark a resource for replacement on the next apply",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setTainted(cmd, args[0], true)
		fmt.Printf("Resource %s has been marked as tainted.\n", args[0])
	},
}

var untaintCommand = &cobra.Command{
	Use:   "untaint ADDRESS",
	Short: "Remove the taint from a resource",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setTainted(cmd, args[0], false)
		fmt.Printf("Resource %s is no longer marked as tainted.\n", args[0])
	},
}

func init() {
	Converge.AddCommand(taintCommand)
	Converge.AddCommand(untaintCommand)
}

func setTainted(cmd *cobra.Command, addr string, tainted bool) {
	if _, err := resource.ParseAddr(addr); err != nil {
		fatal(err)
	}

	store, done, err := openStore(cmd)
	if err != nil {
		fatal(err)
	}
	defer done()

	ctx := context.Background()
	proj := projectName(cmd)

	unlock := acquireLock(ctx, store, proj)
	defer unlock()

	rec, err := store.Resource(ctx, proj, addr)
	if err != nil {
		if errors.Cause(err) == state.ErrNotFound {
			fmt.Fprintf(os.Stderr, "Resource %s not found in state\n", addr)
			os.Exit(1)
		}
		fatal(err)
	}
	rec.Tainted = tainted
	if err := store.PutResource(ctx, proj, rec); err != nil {
		fatal(err)
	}
}
