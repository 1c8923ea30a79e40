package backend

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateData is available to extra node arguments, e.g.
// --log-file={{ .StateDir }}/node.log
type TemplateData struct {
	StateDir string
	Network  string
	NodePort int
	RestPort int
}

// RenderArgs expands each argument as a text/template with sprig functions.
// Arguments without template actions are returned unchanged.
func RenderArgs(args []string, data TemplateData) ([]string, error) {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if !strings.Contains(arg, "{{") {
			out = append(out, arg)
			continue
		}
		tmpl, err := template.New(fmt.Sprintf("arg%d", i)).
			Funcs(sprig.TxtFuncMap()).
			Option("missingkey=error").
			Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("parse argument %q: %w", arg, err)
		}
		var sb strings.Builder
		if err := tmpl.Execute(&sb, data); err != nil {
			return nil, fmt.Errorf("render argument %q: %w", arg, err)
		}
		out = append(out, sb.String())
	}
	return out, nil
}
