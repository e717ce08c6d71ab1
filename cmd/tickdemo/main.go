package main

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	flagFPS     int
	flagWorkers int
	flagLogPath string
)

var rootCmd = &cobra.Command{
	Use:   "tickdemo",
	Short: "Interactive demo of the tickloop scheduler",
	Long: `tickdemo drives a tickloop Scheduler from a Bubble Tea frame loop.

It spawns an animation task, a set of worker-thread digests bounded by a
semaphore, and a key-echo task consuming key presses as an event stream.
Press any key to feed the stream; press q or esc to terminate it and quit.`,
	RunE: runDemo,
}

func init() {
	rootCmd.Flags().IntVar(&flagFPS, "fps", 60, "host loop frames per second")
	rootCmd.Flags().IntVar(&flagWorkers, "workers", 4, "number of worker digests to run")
	rootCmd.Flags().StringVar(&flagLogPath, "log", "", "write JSON logs to this file")
}

func runDemo(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.DiscardHandler)
	if flagLogPath != "" {
		f, err := os.OpenFile(flagLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logger = slog.New(slog.NewJSONHandler(f, nil))
	}

	if flagFPS < 1 {
		return fmt.Errorf("--fps must be at least 1")
	}

	model := newModel(flagFPS, flagWorkers, logger)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, err := program.Run()
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
