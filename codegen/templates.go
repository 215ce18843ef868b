//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package codegen

import (
	"io/fs"
	"strconv"
	"strings"
	"text/template"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/dag"
)

// Templates hold the fragment templates of a backend.
type Templates struct {
	backend string
	tmpl    *template.Template
}

// Funcs define the functions available for the templates.
var Funcs = template.FuncMap{
	"ident": Ident,
	"ints":  Ints,
	"quote": strconv.Quote,
	"join":  strings.Join,
	"idents": func(names []string) string {
		var result []string
		for _, name := range names {
			result = append(result, Ident(name))
		}
		return strings.Join(result, ", ")
	},
}

// Ints formats the integers as a comma-separated list.
func Ints(values []int) string {
	var parts []string
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ", ")
}

// NewTemplates parses the templates matching the patterns from fsys.
func NewTemplates(backend string, fsys fs.FS, patterns ...string) (
	*Templates, error) {

	tmpl, err := template.New(backend).Funcs(Funcs).ParseFS(fsys, patterns...)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: templates", backend)
	}
	return &Templates{
		backend: backend,
		tmpl:    tmpl,
	}, nil
}

// MustTemplates is like NewTemplates but panics if the templates can't
// be parsed.
func MustTemplates(backend string, fsys fs.FS, patterns ...string) *Templates {
	t, err := NewTemplates(backend, fsys, patterns...)
	if err != nil {
		panic(err)
	}
	return t
}

// Execute executes the named template.
func (t *Templates) Execute(name string, data interface{}) (string, error) {
	tmpl := t.tmpl.Lookup(name)
	if tmpl == nil {
		return "", errors.Newf("%s: template %s not found", t.backend, name)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", errors.Wrapf(err, "%s: template %s", t.backend, name)
	}
	return sb.String(), nil
}

// Render renders the node fragment with the named template. The
// errors are reported as EmissionErrors.
func (t *Templates) Render(ctx *Context, n *dag.Node, name string,
	data interface{}) (string, error) {

	code, err := t.Execute(name, data)
	if err != nil {
		return "", &EmissionError{
			Node:    n.Name,
			Kind:    n.Kind(),
			Backend: ctx.Backend,
			Role:    ctx.Role,
			Err:     err,
		}
	}
	return code, nil
}

// Data creates the template data of the node. The data contains the
// common values Ctx, Node, Out (output relation identifier), In
// (first input identifier), Ins (all input identifiers), and
// Relation (output relation), plus the argument key-value pairs.
func Data(ctx *Context, n *dag.Node, kv ...interface{}) map[string]interface{} {
	data := map[string]interface{}{
		"Ctx":      ctx,
		"Node":     n,
		"Out":      Ident(n.Name),
		"Relation": n.Out,
	}
	var ins []string
	for _, p := range n.Parents {
		ins = append(ins, Ident(ctx.Graph.Node(p).Name))
	}
	if len(ins) > 0 {
		data["In"] = ins[0]
	}
	data["Ins"] = ins
	for i := 0; i+1 < len(kv); i += 2 {
		data[kv[i].(string)] = kv[i+1]
	}
	return data
}
