package engine

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// NewToolSpecFromStruct derives a ToolSpec from the arguments struct a tool
// expects. The tool name defaults to the snake_cased type name.
//
//	type GetWeather struct {
//		City string `json:"city" jsonschema:"description=Name of the city"`
//	}
//	spec, err := NewToolSpecFromStruct("", "Current weather", GetWeather{})
func NewToolSpecFromStruct(name string, description string, args interface{}) (ToolSpec, error) {
	if args == nil {
		return ToolSpec{}, errors.New("tool arguments cannot be nil")
	}
	t := reflect.TypeOf(args)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return ToolSpec{}, errors.Errorf("tool arguments must be a struct, got %s", t.Kind())
	}
	if name == "" {
		name = strcase.ToSnake(t.Name())
	}
	if name == "" {
		return ToolSpec{}, errors.New("anonymous structs need an explicit tool name")
	}

	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.ReflectFromType(t)
	// vendors reject unknown meta-schema keys
	schema.Version = ""
	schema.ID = ""

	params, err := json.Marshal(schema)
	if err != nil {
		return ToolSpec{}, errors.Wrapf(err, "could not marshal schema for %s", name)
	}

	return ToolSpec{
		Name:        name,
		Description: description,
		Parameters:  params,
	}, nil
}

// ValidateArguments checks the arguments of a call against the tool schema.
func (t ToolSpec) ValidateArguments(call ToolCall) error {
	if call.Function.Name != t.Name {
		return errors.Errorf("tool call %s does not match tool %s", call.Function.Name, t.Name)
	}
	args, err := call.ArgumentsJSON()
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(t.ParametersOrDefault()),
		gojsonschema.NewBytesLoader(args),
	)
	if err != nil {
		return errors.Wrapf(err, "could not validate arguments of %s", t.Name)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.Errorf("invalid arguments for %s: %s", t.Name, strings.Join(msgs, "; "))
}
