package cmds

import (
	"fmt"

	"github.com/go-go-golems/polyagent/pkg/inference/engine/factory"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/settings"
	"github.com/go-go-golems/polyagent/pkg/steps/ai/types"
	"github.com/spf13/cobra"
)

func NewProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the supported providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range factory.SupportedProviders() {
				family := string(p)
				if types.ApiType(p).IsOpenAICompatible() {
					family = "openai-compatible"
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-18s %s\n", p, family, settings.APIKeyName(p))
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}
