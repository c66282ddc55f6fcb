package cmd

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/converge/converge/apply"
	"github.com/converge/converge/plan"
	"github.com/converge/converge/provider/inmem"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

var applyCommand = &cobra.Command{
	Use:   "apply [dir]",
	Short: "Create, update and destroy resources to match the configuration",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			args = []string{"."}
		}

		parallelism, err := cmd.Flags().GetUint("parallelism")
		if err != nil {
			log.Fatalf("Get parallelism: %v", err)
		}

		_, cfg, g := loadGraph(args[0])

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

		p, err := plan.Build(g, recs)
		if err != nil {
			fatal(err)
		}
		if p.Empty() {
			fmt.Println("No changes. Infrastructure is up-to-date.")
			return
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

		outputs, err := apply.ResolveOutputs(g, cfg.Outputs, res.Applied)
		if err != nil {
			fatal(err)
		}
		if err := storeOutputs(ctx, store, proj, outputs); err != nil {
			fatal(err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf(
			"%s Resources: %d added, %d changed, %d destroyed.\n",
			green("Apply complete!"),
			res.Created+res.Replaced, res.Updated, res.Destroyed+res.Replaced,
		)
		printOutputs(outputs)
	},
}

func init() {
	applyCommand.Flags().Uint("parallelism", 0, "Maximum concurrent operations. 0 uses the default.")

	Converge.AddCommand(applyCommand)
}

// storeOutputs persists the resolved outputs, removing outputs that no
// longer exist in the configuration.
func storeOutputs(ctx context.Context, store outputStore, proj string, outputs map[string]cty.Value) error {
	prev, err := store.Outputs(ctx, proj)
	if err != nil {
		return err
	}
	for name := range prev {
		if _, ok := outputs[name]; !ok {
			if err := store.DeleteOutput(ctx, proj, name); err != nil {
				return err
			}
		}
	}
	for name, val := range outputs {
		if err := store.PutOutput(ctx, proj, name, val); err != nil {
			return err
		}
	}
	return nil
}

type outputStore interface {
	Outputs(ctx context.Context, project string) (map[string]cty.Value, error)
	PutOutput(ctx context.Context, project, name string, val cty.Value) error
	DeleteOutput(ctx context.Context, project, name string) error
}

func printOutputs(outputs map[string]cty.Value) {
	if len(outputs) == 0 {
		return
	}
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nOutputs:")
	for _, name := range names {
		fmt.Printf("  %s = %s\n", name, formatValue(outputs[name]))
	}
}

func formatValue(val cty.Value) string {
	if val.Type() == cty.String {
		return val.AsString()
	}
	data, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return val.GoString()
	}
	return string(data)
}
