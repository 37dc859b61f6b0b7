// Package main is the entry point for the speechd text-to-speech agent.
// It serves the text2speech step to delegating agents over the subtask
// protocol.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"reflect"
	"syscall"

	"github.com/babelmesh/lingua"
	"github.com/babelmesh/lingua/config"
	"github.com/babelmesh/lingua/gateway"
	"github.com/babelmesh/lingua/ledger"
	"github.com/babelmesh/lingua/model/intent"
	"github.com/babelmesh/lingua/registry"
	"github.com/babelmesh/lingua/service/action/speech"
	"github.com/babelmesh/lingua/service/artifact"
	amemory "github.com/babelmesh/lingua/service/artifact/memory"
	"github.com/babelmesh/lingua/service/artifact/pinata"
	"github.com/babelmesh/lingua/service/counterparty"
	"github.com/babelmesh/lingua/service/event"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"
	"github.com/viant/x"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configURL string
	root := &cobra.Command{
		Use:           "speechd",
		Short:         "Text-to-speech agent daemon",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configURL, "config", "c", "", "configuration document URL")
	root.AddCommand(newServeCommand(&configURL))
	return root
}

func newServeCommand(configURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the text-to-speech agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cfg, err := config.Load(ctx, *configURL)
			if err != nil {
				return err
			}
			if err = cfg.Validate(); err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	openaiClient := openai.NewClient(option.WithAPIKey(cfg.OpenAI.APIKey))

	var publisher artifact.Publisher
	if cfg.Pinata.JWT != "" {
		publisher = pinata.New(pinata.Config{
			JWT:      cfg.Pinata.JWT,
			Endpoint: cfg.Pinata.Endpoint,
			Gateway:  cfg.Pinata.Gateway,
		}, nil)
	} else {
		publisher = amemory.New()
	}
	speechService := speech.New(&openaiClient, publisher)

	options := []lingua.Option{
		lingua.WithIdentity(cfg.Identity),
		lingua.WithExtensionServices(speechService),
		lingua.WithExtensionTypes(
			x.NewType(reflect.TypeOf(speech.Output{}), x.WithName("speech.Output"))),
		lingua.WithStep(&registry.Step{
			Name: "text2speech", Mode: registry.ModeLocal,
			Service: "text2speech", Method: "synthesize",
		}),
		lingua.WithPlan(intent.Speech, "text2speech"),
		lingua.WithWorkers(cfg.Workers),
		lingua.WithAuditHandler(func(e *event.Event[ledger.LogEntry]) {
			entry := e.Data
			log.Printf("[%v] task %v %v: %v", entry.Level, entry.TaskID, entry.State, entry.Message)
		}),
	}
	if cfg.Tracing.Enabled {
		options = append(options, lingua.WithTracing("speechd", version, cfg.Tracing.OutputFile))
	}

	engine := lingua.New(options...)
	runtime := engine.Runtime()
	if err := runtime.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = runtime.Shutdown(context.Background()) }()

	gw := gateway.New(runtime,
		gateway.WithConfig(gateway.Config{Addr: cfg.HTTP.Addr, PollInterval: gateway.DefaultConfig().PollInterval}),
		gateway.WithNotifier(counterparty.NewHTTPClient(nil)),
		gateway.WithSubtaskIntents(map[string]intent.Intent{
			"text2speech": intent.Speech,
		}))
	log.Printf("speechd listening on %v", cfg.HTTP.Addr)
	return gw.Start(ctx)
}
