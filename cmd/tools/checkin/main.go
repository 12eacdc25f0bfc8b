package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/t766/control/internal/agent/checkin"
	"github.com/t766/control/internal/config"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "checkin",
		Short: "Manage the node's check-in buffer",
		Long:  `Append, list and flush check-in records that the agent attaches to its next sync report.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./settings.toml)")

	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(flushCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadBuffer() (*checkin.Buffer, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return checkin.New(cfg.Agent.CheckinFile, cfg.Agent.CheckinOldFile), nil
}

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Record a check-in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := loadBuffer()
			if err != nil {
				return err
			}
			now := time.Now()
			if err := buf.Append(now, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), checkin.Format(now, args[0]))
			return nil
		},
	}
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show buffered check-ins",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := loadBuffer()
			if err != nil {
				return err
			}
			entries, err := buf.Read()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No buffered check-ins")
				return nil
			}
			for _, entry := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), entry)
			}
			return nil
		},
	}
}

func flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Move buffered check-ins to the old file without sending them",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := loadBuffer()
			if err != nil {
				return err
			}
			if err := buf.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Check-in buffer flushed")
			return nil
		},
	}
}
