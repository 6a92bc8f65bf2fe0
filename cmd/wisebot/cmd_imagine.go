package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wisebot/internal/llm"
)

// imagineCmd generates an image from a prompt.
var imagineCmd = &cobra.Command{
	Use:   "imagine [prompt]",
	Short: "Generate an image from a text prompt",
	Long: `Renders the prompt through the configured image model and prints the
resulting image URL. Requires an OpenAI-compatible provider.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImagine,
}

func runImagine(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	prompt := strings.Join(args, " ")

	client, err := llm.NewClient(cfg.LLM, cfg.GetLLMTimeout())
	if err != nil {
		return err
	}

	generator, ok := client.(llm.ImageGenerator)
	if !ok {
		return fmt.Errorf("provider %q cannot generate images", cfg.LLM.Provider)
	}

	url, err := generator.GenerateImage(ctx, prompt)
	if err != nil {
		return fmt.Errorf("image generation failed: %w", err)
	}

	fmt.Println(url)
	return nil
}
