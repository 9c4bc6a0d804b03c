// Harvester — многоаккаунтный фарминг-бот.
//
// Прогоняет пул аккаунтов через цепочку on-chain операций
// (claim / approve / swap) по расписанию, с failover между
// JSON-RPC endpoint'ами и эскалацией комиссий.
//
// Использование:
//
//	harvester run --config config.yaml
//	harvester probe --config config.yaml
//	harvester runs ADDRESS --config config.yaml
//	harvester version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "harvester",
		Short:         "Harvester — multi-account on-chain farming bot",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to config file")

	rootCmd.AddCommand(
		newRunCmd(&configPath),
		newProbeCmd(&configPath),
		newRunsCmd(&configPath),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "harvester %s\n", version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
