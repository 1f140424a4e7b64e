// Package prompt loads the stage template documents. A template document is
// plain text: a system-instruction section and one or more prompt-template
// sections separated by a literal "---" line. Prompt templates carry
// {{PLACEHOLDER}} tokens; rendering fails if any token is left unreplaced,
// so a template/input mismatch is caught before a request is spent.
package prompt

import (
	"embed"
	"fmt"
	"os"
	"regexp"
	"strings"
)

//go:embed templates/*.tmpl
var templates embed.FS

var placeholderRE = regexp.MustCompile(`\{\{[A-Z][A-Z0-9_]*\}\}`)

type Template struct {
	SystemInstruction string
	Prompts           []string
}

// Load reads a named built-in template.
func Load(name string) (*Template, error) {
	raw, err := templates.ReadFile("templates/" + name + ".tmpl")
	if err != nil {
		return nil, fmt.Errorf("unknown template %q: %w", name, err)
	}
	return Parse(string(raw))
}

// LoadFile reads a template document from disk, for installations that
// override the built-ins.
func LoadFile(path string) (*Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %q: %w", path, err)
	}
	return Parse(string(raw))
}

func Parse(doc string) (*Template, error) {
	sections := splitSections(doc)
	if len(sections) < 2 {
		return nil, fmt.Errorf("template must have a system section and at least one prompt section")
	}
	return &Template{
		SystemInstruction: sections[0],
		Prompts:           sections[1:],
	}, nil
}

func splitSections(doc string) []string {
	var sections []string
	var current []string
	for _, line := range strings.Split(doc, "\n") {
		if strings.TrimRight(line, "\r") == "---" {
			sections = append(sections, strings.TrimSpace(strings.Join(current, "\n")))
			current = current[:0]
			continue
		}
		current = append(current, line)
	}
	sections = append(sections, strings.TrimSpace(strings.Join(current, "\n")))
	return sections
}

// Prompt returns the i-th prompt section.
func (t *Template) Prompt(i int) (string, error) {
	if i < 0 || i >= len(t.Prompts) {
		return "", fmt.Errorf("template has no prompt section %d", i)
	}
	return t.Prompts[i], nil
}

// Render substitutes every {{KEY}} token from vars and errors on leftovers.
func Render(tmpl string, vars map[string]string) (string, error) {
	out := tmpl
	for key, value := range vars {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	if leftover := placeholderRE.FindAllString(out, -1); len(leftover) > 0 {
		return "", fmt.Errorf("unsubstituted placeholders: %s", strings.Join(dedupe(leftover), ", "))
	}
	return out, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
