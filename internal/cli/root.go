// Package cli implements stratagemctl, a terminal client that talks to the
// model directly with the same prompts and interpretation as the web app.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stratagem-ai/internal/ai"
	"stratagem-ai/internal/bootstrap"
	"stratagem-ai/internal/config"
)

// ModelFactory builds the model client lazily so --help works without a key.
type ModelFactory func(ctx context.Context) (ai.Client, *config.Config, error)

func NewRootCmd(newModel ModelFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "stratagemctl",
		Short:         "Strategic intelligence from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Int("width", 80, "wrap width for rendered output")
	root.PersistentFlags().Bool("json", false, "print the raw model reply instead of rendering it")

	root.AddCommand(newAskCmd(newModel), newAnalyzeCmd(newModel))
	return root
}

func Execute() {
	root := NewRootCmd(loadModel)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadModel(ctx context.Context) (ai.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config failed: %w", err)
	}
	client, err := ai.NewClient(ctx, bootstrap.ChatConfig(cfg.LLM))
	if err != nil {
		return nil, nil, fmt.Errorf("create llm client failed: %w", err)
	}
	return client, cfg, nil
}
