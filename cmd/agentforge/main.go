// Command agentforge runs declarative multi-agent pipelines from the
// terminal.
//
// Usage:
//
//	agentforge validate pipeline.yaml
//	agentforge run pipeline.yaml --provider openai --timeout 5m
//
// The run command needs provider credentials in the environment
// (OPENAI_API_KEY or ANTHROPIC_API_KEY).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentforge"
	"github.com/hupe1980/agentforge/config"
	"github.com/hupe1980/agentforge/engine"
	"github.com/hupe1980/agentforge/logging"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/model/anthropic"
	"github.com/hupe1980/agentforge/model/openai"
)

var (
	flagProvider string
	flagTimeout  time.Duration
	flagVerbose  bool
)

func main() {
	root := &cobra.Command{
		Use:           "agentforge",
		Short:         "Run multi-agent pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	runCmd := &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Run a pipeline to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  runPipeline,
	}
	runCmd.Flags().StringVar(&flagProvider, "provider", "openai", "model provider (openai or anthropic)")
	runCmd.Flags().DurationVar(&flagTimeout, "timeout", 10*time.Minute, "overall pipeline timeout")

	validateCmd := &cobra.Command{
		Use:   "validate <pipeline.yaml>",
		Short: "Validate a pipeline definition without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  validatePipeline,
	}

	root.AddCommand(runCmd, validateCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() logging.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})
	return logging.NewSlogAdapter(slog.New(handler))
}

func newModel() (model.Model, error) {
	switch flagProvider {
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required")
		}
		return openai.NewModel(), nil
	case "anthropic":
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is required")
		}
		return anthropic.NewModel(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want openai or anthropic)", flagProvider)
	}
}

func validatePipeline(_ *cobra.Command, args []string) error {
	p, err := config.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("pipeline %q is valid: %d agents, %d connections, %d workflows\n",
		p.Name, len(p.Agents), len(p.Connections), len(p.Workflows))
	return nil
}

func runPipeline(_ *cobra.Command, args []string) error {
	p, err := config.Load(args[0])
	if err != nil {
		return err
	}

	m, err := newModel()
	if err != nil {
		return err
	}

	logger := newLogger()
	forge := agentforge.New(m, func(o *agentforge.Options) {
		o.Logger = logger
	})

	forge.Use(engine.NewFunctionHook(engine.HookAgentComplete,
		func(_ context.Context, hc *engine.HookContext) error {
			fmt.Printf("=== %s completed (artifact %s) ===\n%s\n",
				hc.Agent, hc.Message.Payload.ArtifactKey, hc.Message.Payload.Content)
			return nil
		}))
	forge.Use(engine.NewLoggingHook(engine.HookAgentError, logger))

	if err := forge.ApplyPipeline(p); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()

	logger.Info("pipeline.run", "name", p.Name, "mode", p.Mode, "agents", len(p.Agents))
	if err := forge.RunPipeline(ctx, p.Mode); err != nil {
		return err
	}
	logger.Info("pipeline.done", "name", p.Name)
	return nil
}
