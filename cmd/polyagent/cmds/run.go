package cmds

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-go-golems/polyagent/pkg/events"
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <prompt...>",
		Short: "Generate text for a prompt (\"-\" reads stdin)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := promptFromCommand(cmd, args)
			if err != nil {
				return err
			}
			s, err := loadAgentSettings(true)
			if err != nil {
				return err
			}

			return runWithEvents(cmd.Context(), viper.GetBool(flagPrintEvents), func(ctx context.Context, sink events.EventSink) error {
				a, err := newAgent(s, sink)
				if err != nil {
					return err
				}
				res, err := a.Execute(ctx, prompt, engine.CallOptions{})
				if err != nil {
					return err
				}
				return writeReply(cmd.OutOrStdout(), res.Data, viper.GetBool(flagRender))
			})
		},
	}
}

func NewJSONCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "json <prompt...>",
		Short: "Generate a JSON value in the provider JSON mode",
		Long: "Generate a JSON value in the provider JSON mode.\n\n" +
			"Anthropic has no JSON mode, its reply is printed as returned.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := promptFromCommand(cmd, args)
			if err != nil {
				return err
			}
			s, err := loadAgentSettings(true)
			if err != nil {
				return err
			}

			return runWithEvents(cmd.Context(), viper.GetBool(flagPrintEvents), func(ctx context.Context, sink events.EventSink) error {
				a, err := newAgent(s, sink)
				if err != nil {
					return err
				}
				res, err := a.ExecuteJSON(ctx, prompt, engine.CallOptions{})
				if err != nil {
					return err
				}
				if text, ok := res.Data.(string); ok {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res.Data)
			})
		},
	}
}
