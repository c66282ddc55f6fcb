// Package cmd implements the converge command line interface.
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/converge/converge/config"
	"github.com/converge/converge/decoder"
	"github.com/converge/converge/graph"
	"github.com/converge/converge/provider/awsspec"
	"github.com/converge/converge/resource"
	"github.com/converge/converge/state"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Converge is the root command.
var Converge = &cobra.Command{
	Use:           "converge",
	Short:         "Declarative infrastructure provisioning",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	Converge.PersistentFlags().String("state", "", "State file. Defaults to ~/.converge/state.db")
	Converge.PersistentFlags().String("project", "default", "Project name")
	Converge.PersistentFlags().BoolP("verbose", "v", false, "Verbose logging")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// registry returns the resource type schemas supported by the cli.
func registry() *resource.Registry {
	return awsspec.Registry()
}

// newLogger creates a logger for a command invocation.
func newLogger(cmd *cobra.Command) *zap.Logger {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		log.Fatalf("Get verbose: %v", err)
	}
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	if verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}
	return logger
}

// openStore opens the state store from the --state flag. The returned
// closer must be called when the command is done.
func openStore(cmd *cobra.Command) (*state.Store, func(), error) {
	file, err := cmd.Flags().GetString("state")
	if err != nil {
		return nil, nil, err
	}
	if file == "" {
		file, err = state.DefaultFile()
		if err != nil {
			return nil, nil, err
		}
	}
	backend, err := state.NewBolt(file)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open state")
	}
	closer := func() {
		backend.Close() // nolint: errcheck
	}
	return &state.Store{Backend: backend}, closer, nil
}

func projectName(cmd *cobra.Command) string {
	proj, err := cmd.Flags().GetString("project")
	if err != nil {
		log.Fatalf("Get project: %v", err)
	}
	return proj
}

// loadGraph loads and decodes the project at target and builds the
// dependency graph. Diagnostics are printed and exit the process.
func loadGraph(target string) (*config.Loader, *decoder.Config, *graph.Graph) {
	loader := &config.Loader{}

	rootDir, err := loader.Root(target)
	if err != nil {
		fatal(err)
	}
	if rootDir == "" {
		fmt.Fprintln(os.Stderr, "Project not found")
		fmt.Fprintf(os.Stderr, "Mark the project root by creating %s\n", config.RootMarker)
		os.Exit(2)
	}

	body, diags := loader.Load(rootDir)
	if diags.HasErrors() {
		loader.WriteDiagnostics(os.Stderr, diags)
		os.Exit(1)
	}

	cfg, diags := decoder.Decode(body, registry())
	if diags.HasErrors() {
		loader.WriteDiagnostics(os.Stderr, diags)
		os.Exit(1)
	}

	g, err := graph.Build(cfg)
	if err != nil {
		fatal(err)
	}
	return loader, cfg, g
}
