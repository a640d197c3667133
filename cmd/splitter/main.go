package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
)

func main() {
	root := &cobra.Command{
		Use:           "splitter",
		Short:         "Split recorded conversations into per-speaker audio snippets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default ./.env when present)")

	root.AddCommand(newRunCmd(), newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
