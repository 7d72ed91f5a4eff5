package main

import (
	"fmt"
	"os"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "burrow",
	Short: "Burrow - predictive admission control for agent tasks",
	Long: `Burrow predicts the memory, CPU, token and time cost of a task before it
runs, admits it only if the host and the token budgets can afford it, and
keeps admitted tasks in a priority queue until a worker starts them.

Run 'burrow serve' to start the scheduler; every other command talks to a
running server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		levelFlag, _ := cmd.Flags().GetString("log-level")
		jsonOut, _ := cmd.Flags().GetBool("log-json")

		level, err := log.ParseLevel(levelFlag)
		if err != nil {
			return err
		}
		log.Init(log.Config{Level: level, JSONOutput: jsonOut})
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Burrow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("addr", "127.0.0.1:8080", "Burrow server address")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "Output format (text, json, yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(taskCommands()...)
	rootCmd.AddCommand(inspectCommands()...)
}
