package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version and BuildDate are set by the linker on release builds.
var (
	Version   = "dev"
	BuildDate = "unknown"
)

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("converge %s (built %s, %s)\n", Version, BuildDate, runtime.Version())
	},
}

func init() {
	Converge.AddCommand(versionCommand)
}
