package cmd

import (
	"fmt"
	"os"

	"github.com/Ryanmaxin/goTM/cmd/bench"
	"github.com/Ryanmaxin/goTM/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "gotm",
		Short: "word-level software transactional memory",
		Long: fmt.Sprintf(`goTM (v%s)

A word-level software transactional memory engine for Go in the
TL2 family: optimistic speculation, versioned write locks and
commit-time validation over a shared memory region.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of goTM",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("goTM v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("log level to use (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
