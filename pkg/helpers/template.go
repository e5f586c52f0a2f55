package helpers

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
)

// RenderTemplate renders a text/template prompt with the sprig functions.
// Missing variables are an error rather than "<no value>".
func RenderTemplate(tmpl string, vars map[string]interface{}) (string, error) {
	t, err := template.New("prompt").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(tmpl)
	if err != nil {
		return "", errors.Wrap(err, "could not parse prompt template")
	}

	buf := &bytes.Buffer{}
	if err := t.Execute(buf, vars); err != nil {
		return "", errors.Wrap(err, "could not render prompt template")
	}
	return buf.String(), nil
}

// ParseVars parses "key=value" pairs. Values may contain '='.
func ParseVars(pairs []string) (map[string]interface{}, error) {
	ret := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.Errorf("invalid variable %q, expected key=value", pair)
		}
		ret[k] = v
	}
	return ret, nil
}
