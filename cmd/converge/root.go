package cmd

import (
	"fmt"
	"os"

	"github.com/converge/converge/config"
	"github.com/spf13/cobra"
)

var rootCommand = &cobra.Command{
	Use:   "root [dir]",
	Short: "Print the project root directory",
	Long: "Print the directory that contains the " + config.RootMarker + " marker,\n" +
		"searching upwards from the given directory (or the working directory).",
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}

		loader := &config.Loader{}
		rootDir, err := loader.Root(dir)
		if err != nil {
			fatal(err)
		}
		if rootDir == "" {
			fmt.Fprintf(os.Stderr, "Project not found, no %s in %s or any parent directory\n", config.RootMarker, dir)
			os.Exit(2)
		}
		fmt.Println(rootDir)
	},
}

func init() {
	Converge.AddCommand(rootCommand)
}
