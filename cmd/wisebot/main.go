package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"wisebot/internal/config"
	"wisebot/internal/embedding"
	"wisebot/internal/llm"
	"wisebot/internal/logging"
	"wisebot/internal/search"
	"wisebot/internal/webpage"
	"wisebot/internal/wisdom"
)

var (
	// Global flags
	verbose   bool
	apiKey    string
	workspace string
	timeout   time.Duration

	// Logger
	logger *zap.Logger

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wisebot",
	Short: "WiseBot - search-augmented chat assistant",
	Long: `WiseBot answers questions by deciding per turn whether the web must be
consulted, then searching, ranking and fetching sources under a strict
token budget before streaming its reply.

Run "wisebot ask" for a single question or "wisebot chat" for a session.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
		}

		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}

		cfg, err = config.Load(workspace)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if apiKey != "" {
			cfg.LLM.APIKey = apiKey
		}

		logging.Boot("wisebot %s starting: workspace=%s provider=%s", cfg.Version, workspace, cfg.LLM.Provider)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Completion API key (or set OPENAI_API_KEY / ANTHROPIC_API_KEY)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(imagineCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildPipeline wires the full turn pipeline from configuration.
func buildPipeline() (*wisdom.Pipeline, llm.Client, error) {
	client, err := llm.NewClient(cfg.LLM, cfg.GetLLMTimeout())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	embedder, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedding engine: %w", err)
	}

	counter := wisdom.NewTokenCounter()
	builder := wisdom.NewContextBuilder(counter)
	ranker := wisdom.NewRanker(embedder)
	fetcher := wisdom.NewSourceFetcher(webpage.NewFetcher(), counter, cfg.GetFetchTimeout())
	decider := wisdom.NewAugmentationDecider(
		client,
		search.NewDuckDuckGo(),
		ranker,
		fetcher,
		counter,
		cfg.Wisdom.MaxSources,
		cfg.Wisdom.MaxSearchResults,
	)
	streamer := wisdom.NewResponseStreamer(client, cfg.Wisdom.ChunkSize, cfg.GetFlushInterval())

	pipeline := wisdom.NewPipeline(builder, decider, streamer, cfg.Wisdom.TokenBudget, cfg.Wisdom.SourceBudgetShare)
	return pipeline, client, nil
}

// systemMessages returns the persona messages for a turn.
func systemMessages() []wisdom.Message {
	return []wisdom.Message{
		{Role: wisdom.RoleSystem, Content: cfg.Wisdom.SystemPrompt},
	}
}
