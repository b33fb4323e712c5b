// CLI for audio feature analysis and the report server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/audioride/audioride/pkg/analysis"
	"github.com/audioride/audioride/pkg/server"
)

var rootCmd = &cobra.Command{
	Use:   "app",
	Short: "Audio feature analysis for music-reactive visuals",
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <directory>",
	Short: "Analyze audio files and create JSON report sidecars",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		frameSize, _ := cmd.Flags().GetInt("frame-size")
		hopSize, _ := cmd.Flags().GetInt("hop-size")
		return runAnalyze(args[0], force, frameSize, hopSize)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve <music-directory>",
	Short: "Start the report server on :8080",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		return runServe(args[0], addr)
	},
}

func init() {
	analyzeCmd.Flags().BoolP("force", "f", false, "Force re-analysis even if a report exists")
	analyzeCmd.Flags().Int("frame-size", 0, "Analysis frame size in samples (power of two)")
	analyzeCmd.Flags().Int("hop-size", 0, "Hop between frames in samples")
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAnalyze(dir string, force bool, frameSize, hopSize int) error {
	cfg := analysis.DefaultConfig()
	if frameSize > 0 {
		cfg.FrameSize = frameSize
		cfg.HopSize = frameSize / 4
	}
	if hopSize > 0 {
		cfg.HopSize = hopSize
	}

	analyzer, err := analysis.NewWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}

	// Ctrl-C cancels the walk between frame batches.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return analyzer.AnalyzeDir(ctx, dir, force)
}

func runServe(musicDir, addr string) error {
	analyzer, err := analysis.New()
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}
	return server.New(musicDir, analyzer).Run(addr)
}
