// Package main is the entry point for the linguad translation agent.
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
	"github.com/babelmesh/lingua/metering"
	"github.com/babelmesh/lingua/model/intent"
	"github.com/babelmesh/lingua/registry"
	"github.com/babelmesh/lingua/service/action/speech"
	"github.com/babelmesh/lingua/service/action/translate"
	"github.com/babelmesh/lingua/service/artifact"
	amemory "github.com/babelmesh/lingua/service/artifact/memory"
	"github.com/babelmesh/lingua/service/artifact/pinata"
	"github.com/babelmesh/lingua/service/counterparty"
	taskfs "github.com/babelmesh/lingua/service/dao/task/fs"
	"github.com/babelmesh/lingua/service/event"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"
	"github.com/viant/afs"
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
		Use:           "linguad",
		Short:         "Translation agent daemon",
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
		Short: "Run the translation agent",
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

	translateService := translate.New(&openaiClient, translate.WithModel(cfg.OpenAI.Model))
	speechService := speech.New(&openaiClient, publisher)

	options := []lingua.Option{
		lingua.WithIdentity(cfg.Identity),
		lingua.WithCallbackURL(cfg.HTTP.CallbackURL + "/v1/results"),
		lingua.WithCounterpartyClient(counterparty.NewHTTPClient(nil)),
		lingua.WithExtensionServices(translateService, speechService),
		lingua.WithExtensionTypes(
			x.NewType(reflect.TypeOf(translate.Output{}), x.WithName("translate.Output")),
			x.NewType(reflect.TypeOf(speech.Output{}), x.WithName("speech.Output"))),
		lingua.WithWorkers(cfg.Workers),
		lingua.WithAuditHandler(func(e *event.Event[ledger.LogEntry]) {
			entry := e.Data
			log.Printf("[%v] task %v %v: %v", entry.Level, entry.TaskID, entry.State, entry.Message)
		}),
	}
	if cfg.Metering.Enabled {
		options = append(options, lingua.WithMeter(metering.NewMemory(cfg.Metering.OrderCredits)))
	}
	if cfg.TaskStoreURL != "" {
		options = append(options, lingua.WithTaskDAO(taskfs.New(afs.New(), cfg.TaskStoreURL)))
	}
	if cfg.Tracing.Enabled {
		options = append(options, lingua.WithTracing("linguad", version, cfg.Tracing.OutputFile))
	}
	options = append(options, steps(cfg)...)
	options = append(options,
		lingua.WithPlan(intent.Translate, "translate"),
		lingua.WithPlan(intent.TranslateSpeech, "translate", "text2speech"),
		lingua.WithPlan(intent.Speech, "text2speech"))

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
			"translate":   intent.Translate,
			"text2speech": intent.Speech,
		}))
	log.Printf("linguad listening on %v", cfg.HTTP.Addr)
	return gw.Start(ctx)
}

// steps builds the step definitions: every step runs locally unless the
// configuration delegates it to a counterparty.
func steps(cfg *config.Config) []lingua.Option {
	delegated := map[string]*config.Delegation{}
	for i := range cfg.Delegations {
		delegated[cfg.Delegations[i].Step] = &cfg.Delegations[i]
	}
	var options []lingua.Option
	if d, ok := delegated["translate"]; ok {
		options = append(options, lingua.WithStep(&registry.Step{
			Name: "translate", Mode: registry.ModeDelegated,
			Counterparty: d.Endpoint, Plan: d.Plan, Timeout: d.Timeout,
			OutputType: "translate.Output",
		}))
	} else {
		options = append(options, lingua.WithStep(&registry.Step{
			Name: "translate", Mode: registry.ModeLocal,
			Service: "translate", Method: "translate",
		}))
	}
	if d, ok := delegated["text2speech"]; ok {
		options = append(options, lingua.WithStep(&registry.Step{
			Name: "text2speech", Mode: registry.ModeDelegated,
			Counterparty: d.Endpoint, Plan: d.Plan, Timeout: d.Timeout,
			OutputType: "speech.Output",
		}))
	} else {
		options = append(options, lingua.WithStep(&registry.Step{
			Name: "text2speech", Mode: registry.ModeLocal,
			Service: "text2speech", Method: "synthesize",
		}))
	}
	return options
}
