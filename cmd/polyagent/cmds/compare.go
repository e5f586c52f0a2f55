package cmds

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-go-golems/polyagent/pkg/agent"
	"github.com/go-go-golems/polyagent/pkg/events"
	"github.com/go-go-golems/polyagent/pkg/helpers"
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

type comparison struct {
	ProviderModel string
	Result        helpers.Result[string]
	Duration      time.Duration
}

type agentConstructor func(providerModel string) (*agent.Agent, error)

// compareModels sends prompt to a fresh agent per model, concurrently.
// Results are in the order of models and one failure does not stop the others.
func compareModels(ctx context.Context, models []string, prompt string, newAgent agentConstructor) []comparison {
	ret := make([]comparison, len(models))

	eg := errgroup.Group{}
	for i, m := range models {
		eg.Go(func() error {
			start := time.Now()
			a, err := newAgent(m)
			if err != nil {
				ret[i] = comparison{ProviderModel: m, Result: helpers.NewResult("", err)}
				return nil
			}
			text := ""
			res, err := a.Execute(ctx, prompt, engine.CallOptions{})
			if err == nil {
				text = res.Data
			}
			ret[i] = comparison{
				ProviderModel: m,
				Result:        helpers.NewResult(text, err),
				Duration:      time.Since(start),
			}
			return nil
		})
	}
	_ = eg.Wait()

	return ret
}

func printComparisons(w io.Writer, comparisons []comparison, render bool) (int, error) {
	failed := 0
	for _, c := range comparisons {
		text, err := c.Result.Value()
		if err != nil {
			failed++
			if _, err := fmt.Fprintf(w, "== %s ==\nerror: %v\n\n", c.ProviderModel, err); err != nil {
				return failed, err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "== %s (%s) ==\n", c.ProviderModel, c.Duration.Round(time.Millisecond)); err != nil {
			return failed, err
		}
		if err := writeReply(w, text, render); err != nil {
			return failed, err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return failed, err
		}
	}
	return failed, nil
}

// checkCompareFlags rejects settings that only make sense for one provider.
func checkCompareFlags(v *viper.Viper) error {
	for _, key := range []string{settings.KeyAPIKey, settings.KeyBaseURL} {
		if v.GetString(key) != "" {
			return errors.Errorf("--%s cannot be used with compare, configure keys and base URLs per provider", key)
		}
	}
	return nil
}

func NewCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare -m provider:model -m provider:model <prompt...>",
		Short: "Send one prompt to several models at once",
		Long: "Send one prompt to several models at once.\n\n" +
			"Every model gets its own agent. Keys and base URLs come from the config\n" +
			"file (api.api_keys, api.base_urls) or the <PROVIDER>_API_KEY environment\n" +
			"variables. --api-key and --base-url are rejected.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := cmd.Flags().GetStringArray("models")
			if err != nil {
				return err
			}
			if len(models) == 0 {
				return errors.New("at least one --models provider:model is required")
			}
			if err := checkCompareFlags(viper.GetViper()); err != nil {
				return err
			}
			prompt, err := promptFromCommand(cmd, args)
			if err != nil {
				return err
			}
			base, err := loadAgentSettings(false)
			if err != nil {
				return err
			}

			return runWithEvents(cmd.Context(), viper.GetBool(flagPrintEvents), func(ctx context.Context, sink events.EventSink) error {
				newAgent := func(providerModel string) (*agent.Agent, error) {
					s := base.Clone()
					s.ProviderModel = providerModel
					if err := s.LoadAPIKeyFromViper(viper.GetViper()); err != nil {
						return nil, err
					}
					options, err := agentOptions(s, sink)
					if err != nil {
						return nil, err
					}
					return agent.NewFromSettings(s, options...)
				}

				comparisons := compareModels(ctx, models, prompt, newAgent)
				failed, err := printComparisons(cmd.OutOrStdout(), comparisons, viper.GetBool(flagRender))
				if err != nil {
					return err
				}
				if failed > 0 {
					return errors.Errorf("%d of %d models failed", failed, len(models))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayP("models", "m", nil, "provider:model to compare (repeatable)")
	return cmd
}
