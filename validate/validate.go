// Package validate checks generated file content against the grammar of its
// target format before it is written to disk.
package validate

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// Diagnostic is one problem found in a file.
type Diagnostic struct {
	Line    int
	Column  int
	Message string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
	}
	return d.Message
}

// Error reports every diagnostic found for Path.
type Error struct {
	Path        string
	Diagnostics []Diagnostic
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = d.String()
	}
	return fmt.Sprintf("invalid %s: %s", e.Path, strings.Join(msgs, "; "))
}

type format int

const (
	formatNone format = iota
	formatHCL
	formatYAML
	formatJSON
)

func detect(path, tag string) format {
	switch strings.ToLower(tag) {
	case "hcl", "terraform", "tf":
		return formatHCL
	case "yaml", "yml":
		return formatYAML
	case "json":
		return formatJSON
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tf":
		return formatHCL
	case ".yml", ".yaml":
		return formatYAML
	case ".json":
		return formatJSON
	}
	return formatNone
}

// Content validates body as the format implied by tag, falling back to the
// extension of path. Formats it does not know are accepted as-is.
func Content(path, tag, body string) error {
	switch detect(path, tag) {
	case formatHCL:
		return hclContent(path, body)
	case formatYAML:
		return yamlContent(path, body)
	case formatJSON:
		return jsonContent(path, body)
	}
	return nil
}

func hclContent(path, body string) error {
	parser := hclparse.NewParser()
	_, diags := parser.ParseHCL([]byte(body), path)
	if !diags.HasErrors() {
		return nil
	}

	verr := &Error{Path: path}
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}
		d := Diagnostic{Message: diag.Summary}
		if diag.Detail != "" {
			d.Message = fmt.Sprintf("%s: %s", diag.Summary, diag.Detail)
		}
		if diag.Subject != nil {
			d.Line = diag.Subject.Start.Line
			d.Column = diag.Subject.Start.Column
		}
		verr.Diagnostics = append(verr.Diagnostics, d)
	}
	return verr
}

func yamlContent(path, body string) error {
	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(body), &doc); err != nil {
		return &Error{Path: path, Diagnostics: []Diagnostic{{Message: err.Error()}}}
	}
	if doc == nil {
		return &Error{Path: path, Diagnostics: []Diagnostic{{Message: "document is empty"}}}
	}

	if !isWorkflow(path) {
		return nil
	}

	var diags []Diagnostic
	// yaml.v3 keeps an unquoted `on` key as "on"; YAML 1.1 emitters write it as true.
	_, on := doc["on"]
	_, onTrue := doc["true"]
	if !on && !onTrue {
		diags = append(diags, Diagnostic{Message: "workflow has no `on` trigger"})
	}
	if _, ok := doc["jobs"]; !ok {
		diags = append(diags, Diagnostic{Message: "workflow has no `jobs`"})
	}
	if len(diags) > 0 {
		return &Error{Path: path, Diagnostics: diags}
	}
	return nil
}

func isWorkflow(path string) bool {
	return strings.Contains(filepath.ToSlash(path), ".github/workflows/")
}

func jsonContent(path, body string) error {
	var v interface{}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		d := Diagnostic{Message: err.Error()}
		if serr, ok := err.(*json.SyntaxError); ok {
			d.Line, d.Column = position(body, serr.Offset)
		}
		return &Error{Path: path, Diagnostics: []Diagnostic{d}}
	}
	return nil
}

func position(body string, offset int64) (int, int) {
	if offset > int64(len(body)) {
		offset = int64(len(body))
	}
	prefix := body[:offset]
	line := strings.Count(prefix, "\n") + 1
	col := int(offset) - strings.LastIndex(prefix, "\n")
	return line, col
}
