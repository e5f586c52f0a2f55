package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/polyagent/pkg/agent"
	"github.com/go-go-golems/polyagent/pkg/events"
	"github.com/go-go-golems/polyagent/pkg/helpers"
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/go-go-golems/polyagent/pkg/inference/engine/factory"
	"github.com/go-go-golems/polyagent/pkg/inference/transport"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/settings"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tcnksm/go-input"
	"golang.org/x/sync/errgroup"
)

const (
	flagRender      = "render"
	flagPrintEvents = "print-events"
	flagVar         = "var"
	flagRecordDir   = "record-dir"

	eventsTopic = "agent"
)

// AddAgentFlags registers the flags every command uses to build its agent.
func AddAgentFlags(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.String(settings.KeyConfig, "", "Agent settings YAML file")
	fs.String(settings.KeyProviderModel, "", "Provider and model, e.g. groq:llama3-8b-8192")
	fs.String(settings.KeySystemPrompt, "", "System prompt seeding the conversation")
	fs.String(settings.KeyAPIKey, "", "API key (default: $<PROVIDER>_API_KEY)")
	fs.String(settings.KeyBaseURL, "", "Replace the provider base URL, e.g. for a proxy")
	fs.String(settings.KeyModel, "", "Model used for every call instead of the configured one")
	fs.Int(settings.KeyMaxTokens, engine.DefaultMaxTokens, "Maximum response tokens")
	fs.Float64(settings.KeyTemperature, engine.DefaultTemperature, "Sampling temperature")
	fs.Int(settings.KeyTimeout, int(settings.DefaultTimeout/time.Second), "HTTP timeout in seconds")
	fs.String(settings.KeyUserAgent, "", "HTTP User-Agent header")
	fs.Bool(settings.KeyAllowHTTP, false, "Allow plain http base URLs")
	fs.Bool(settings.KeyAllowLocalNetworks, false, "Allow base URLs on loopback and private networks")

	fs.Bool(flagRender, false, "Render replies as markdown")
	fs.Bool(flagPrintEvents, false, "Print call events to stderr")
	fs.StringArray(flagVar, nil, "Prompt template variable key=value (repeatable)")
	fs.String(flagRecordDir, "", "Write every provider request and response to this directory")
}

// loadAgentSettings reads flags, environment and the --config file.
func loadAgentSettings(requireProviderModel bool) (*settings.AgentSettings, error) {
	s, err := settings.NewAgentSettingsFromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if requireProviderModel && s.ProviderModel == "" {
		return nil, errors.Errorf("--%s is required", settings.KeyProviderModel)
	}
	return s, nil
}

// askForAPIKey prompts on the terminal when no key was configured.
// Invalid identifiers are reported before asking.
func askForAPIKey(s *settings.AgentSettings) error {
	if s.APIKey() != "" || !isatty.IsTerminal(os.Stdin.Fd()) {
		return nil
	}
	r, err := factory.Resolve(s.ProviderModel)
	if err != nil {
		return err
	}

	ui := &input.UI{
		Writer: os.Stderr,
		Reader: os.Stdin,
	}
	key, err := ui.Ask(fmt.Sprintf("%s API key", r.Provider), &input.Options{
		Required:  true,
		Loop:      true,
		Mask:      true,
		HideOrder: true,
	})
	if err != nil {
		return errors.Wrap(err, "could not read API key")
	}
	s.API.SetAPIKey(string(r.Provider), strings.TrimSpace(key))
	return nil
}

var recordDirReplacer = strings.NewReplacer(":", "_", "/", "-", "\\", "-")

// agentOptions wires the sink and, with --record-dir, a recording transport
// writing to one subdirectory per provider-model.
func agentOptions(s *settings.AgentSettings, sink events.EventSink) ([]agent.Option, error) {
	options := []agent.Option{agent.WithEventSink(sink)}
	if dir := viper.GetString(flagRecordDir); dir != "" {
		dir = filepath.Join(dir, recordDirReplacer.Replace(s.ProviderModel))
		rt, err := transport.NewRecordingTransport(s.Client.NewTransport(), dir)
		if err != nil {
			return nil, err
		}
		options = append(options, agent.WithTransport(rt))
	}
	return options, nil
}

func newAgent(s *settings.AgentSettings, sink events.EventSink) (*agent.Agent, error) {
	if err := askForAPIKey(s); err != nil {
		return nil, err
	}
	options, err := agentOptions(s, sink)
	if err != nil {
		return nil, err
	}
	return agent.NewFromSettings(s, options...)
}

// runWithEvents calls f with a sink. With --print-events the sink feeds a
// watermill router printing every event to stderr until f returns.
// Adding --verbose prints the full event JSON instead.
func runWithEvents(ctx context.Context, printEvents bool, f func(ctx context.Context, sink events.EventSink) error) error {
	if !printEvents {
		return f(ctx, events.NewNullSink())
	}

	verbose := viper.GetBool("verbose")
	router, err := events.NewEventRouter(events.WithVerbose(verbose))
	if err != nil {
		return err
	}
	router.AddHandler("printer", eventsTopic, eventHandler(router, verbose, os.Stderr))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg := errgroup.Group{}
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		select {
		case <-router.Running():
		case <-ctx.Done():
			return ctx.Err()
		}
		return f(ctx, router.NewSink(eventsTopic))
	})

	err = eg.Wait()
	if closeErr := router.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("could not close event router")
	}
	return err
}

// eventHandler prints one line per event, or the raw event JSON with --verbose.
func eventHandler(router *events.EventRouter, verbose bool, w io.Writer) func(msg *message.Message) error {
	if verbose {
		return router.DumpRawEventsFunc(w)
	}
	return events.PrinterFunc(w)
}

// readPrompt joins args into the prompt. A single "-" reads it from in.
// With template variables the prompt is rendered as a text/template.
func readPrompt(args []string, in io.Reader, vars []string) (string, error) {
	prompt := strings.Join(args, " ")
	if prompt == "-" {
		b, err := io.ReadAll(in)
		if err != nil {
			return "", errors.Wrap(err, "could not read prompt")
		}
		prompt = string(b)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt is empty")
	}
	if len(vars) == 0 {
		return prompt, nil
	}

	m, err := helpers.ParseVars(vars)
	if err != nil {
		return "", err
	}
	return helpers.RenderTemplate(prompt, m)
}

func promptFromCommand(cmd *cobra.Command, args []string) (string, error) {
	vars, err := cmd.Flags().GetStringArray(flagVar)
	if err != nil {
		return "", err
	}
	return readPrompt(args, cmd.InOrStdin(), vars)
}

func writeReply(w io.Writer, text string, render bool) error {
	if render {
		styled, err := glamour.Render(text, "dark")
		if err != nil {
			return errors.Wrap(err, "could not render reply")
		}
		_, err = fmt.Fprint(w, styled)
		return err
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
