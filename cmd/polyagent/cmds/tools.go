package cmds

import (
	"context"
	"encoding/json"
	"os"

	"github.com/go-go-golems/polyagent/pkg/events"
	"github.com/go-go-golems/polyagent/pkg/inference/engine"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type toolDefinition struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Parameters  map[string]interface{} `yaml:"parameters"`
}

type toolsFile struct {
	Tools []toolDefinition `yaml:"tools"`
}

// LoadTools decodes tool declarations:
//
//	tools:
//	  - name: get_weather
//	    description: Current weather for a city
//	    parameters:
//	      type: object
//	      properties:
//	        city: {type: string}
func LoadTools(b []byte) ([]engine.ToolSpec, error) {
	var f toolsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "could not decode tools")
	}
	if len(f.Tools) == 0 {
		return nil, errors.New("no tools declared")
	}

	seen := map[string]bool{}
	ret := make([]engine.ToolSpec, 0, len(f.Tools))
	for i, t := range f.Tools {
		if t.Name == "" {
			return nil, errors.Errorf("tool %d has no name", i)
		}
		if seen[t.Name] {
			return nil, errors.Errorf("tool %s declared twice", t.Name)
		}
		seen[t.Name] = true

		spec := engine.ToolSpec{Name: t.Name, Description: t.Description}
		if t.Parameters != nil {
			params, err := json.Marshal(t.Parameters)
			if err != nil {
				return nil, errors.Wrapf(err, "could not encode parameters of %s", t.Name)
			}
			spec.Parameters = params
		}
		ret = append(ret, spec)
	}
	return ret, nil
}

// GetWeather and GetCurrentTime are the tools declared when no tools file is given.
type GetWeather struct {
	City string `json:"city" jsonschema:"description=Name of the city"`
	Unit string `json:"unit,omitempty" jsonschema:"enum=celsius,enum=fahrenheit"`
}

type GetCurrentTime struct {
	Timezone string `json:"timezone" jsonschema:"description=IANA timezone, e.g. Europe/Paris"`
}

func builtinTools() ([]engine.ToolSpec, error) {
	weather, err := engine.NewToolSpecFromStruct("", "Current weather for a city", GetWeather{})
	if err != nil {
		return nil, err
	}
	clock, err := engine.NewToolSpecFromStruct("", "Current time in a timezone", GetCurrentTime{})
	if err != nil {
		return nil, err
	}
	return []engine.ToolSpec{weather, clock}, nil
}

// loadToolsOrBuiltin reads path, or falls back to the builtin tools when it is empty.
func loadToolsOrBuiltin(path string) ([]engine.ToolSpec, error) {
	if path == "" {
		return builtinTools()
	}
	return LoadToolsFile(path)
}

func LoadToolsFile(path string) ([]engine.ToolSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read tools file %s", path)
	}
	return LoadTools(b)
}

// validateCalls checks every call against its declaration and returns the
// number of calls that failed.
func validateCalls(tools []engine.ToolSpec, calls []engine.ToolCall) int {
	byName := make(map[string]engine.ToolSpec, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}

	invalid := 0
	for _, call := range calls {
		spec, ok := byName[call.Function.Name]
		if !ok {
			log.Warn().Str("tool", call.Function.Name).Msg("model called an undeclared tool")
			invalid++
			continue
		}
		if err := spec.ValidateArguments(call); err != nil {
			log.Warn().Err(err).Str("tool", call.Function.Name).Msg("invalid tool call arguments")
			invalid++
		}
	}
	return invalid
}

func NewToolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools [--tools-file tools.yaml] <prompt...>",
		Short: "Declare tools and print the tool calls the model issued",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolsPath, err := cmd.Flags().GetString("tools-file")
			if err != nil {
				return err
			}
			strict, err := cmd.Flags().GetBool("strict")
			if err != nil {
				return err
			}
			tools, err := loadToolsOrBuiltin(toolsPath)
			if err != nil {
				return err
			}
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
				res, err := a.ExecuteTools(ctx, prompt, tools, engine.CallOptions{})
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(res.Data); err != nil {
					return err
				}

				if invalid := validateCalls(tools, res.Data); invalid > 0 && strict {
					return errors.Errorf("%d of %d tool calls failed validation", invalid, len(res.Data))
				}
				return nil
			})
		},
	}
	cmd.Flags().String("tools-file", "", "YAML file declaring the tools (default: get_weather and get_current_time)")
	cmd.Flags().Bool("strict", false, "Fail when a tool call does not match its declaration")
	return cmd
}
