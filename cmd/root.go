package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chordkv",
	Short: "A fixed-membership Chord ring key-value store",
	Long:  `chordkv runs and benchmarks nodes in a fixed-membership Chord ring key-value store.`,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
