package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wisebot/internal/wisdom"
)

// askCmd answers a single question and exits.
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Long: `Runs one turn of the pipeline: the question is classified, augmented
with web sources if needed, and the answer is streamed to stdout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	question := strings.Join(args, " ")
	logger.Info("Processing question", zap.String("input", question))

	pipeline, _, err := buildPipeline()
	if err != nil {
		return err
	}

	history := []wisdom.Message{
		{Role: wisdom.RoleUser, Content: question},
	}

	chunks, errs, err := pipeline.Turn(ctx, systemMessages(), nil, history)
	if err != nil {
		return fmt.Errorf("turn failed: %w", err)
	}

	for chunk := range chunks {
		fmt.Print(chunk.Text)
		if chunk.IsFinal {
			fmt.Println()
		}
	}

	if err, ok := <-errs; ok && err != nil {
		fmt.Println()
		return fmt.Errorf("answer stream failed: %w", err)
	}

	return nil
}
