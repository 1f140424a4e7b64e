package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lessonforge/lessonforge/internal/llm/provider"
)

// requiredFields is the minimal schema per interactive-element provider. A
// declaration missing any of its provider's fields fails the stage.
var requiredFields = map[string][]string{
	"plotly":   {"data", "layout"},
	"chart":    {"type", "data"},
	"graph":    {"nodes", "edges"},
	"scene3d":  {"objects"},
	"editor":   {"language", "code"},
	"timeline": {"frames"},
	"canvas":   {"strokes"},
	"physics":  {"bodies"},
}

type ReviewInput struct {
	Content   string
	Providers []string
}

type Declaration struct {
	Provider string
	Body     string
}

type ReviewOutput struct {
	Content      string
	Declarations []Declaration
	Usage        provider.TokenUsage
}

// Review substitutes interactive-element declarations for the analysis
// markers and validates each declaration against its provider's minimal
// schema. Invalid declarations are a stage failure, never passed through.
func Review(ctx context.Context, p provider.Provider, in ReviewInput) (*ReviewOutput, error) {
	text, usage, err := runStage(ctx, p, "review", map[string]string{
		"CONTENT":   in.Content,
		"PROVIDERS": strings.Join(in.Providers, ", "),
	})
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("review stage returned empty text")
	}

	declarations, err := parseDeclarations(text)
	if err != nil {
		return nil, err
	}
	for _, decl := range declarations {
		if err := validateDeclaration(decl, in.Providers); err != nil {
			return nil, err
		}
	}

	return &ReviewOutput{Content: text, Declarations: declarations, Usage: usage}, nil
}

// parseDeclarations extracts fenced blocks whose info string names a known
// interactive provider. Ordinary code fences (```go and friends) are left
// alone.
func parseDeclarations(markdown string) ([]Declaration, error) {
	var decls []Declaration
	lines := strings.Split(markdown, "\n")
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, "```") {
			continue
		}
		info := strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
		var body []string
		closed := false
		j := i + 1
		for ; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "```" {
				closed = true
				break
			}
			body = append(body, lines[j])
		}
		if !closed {
			return nil, fmt.Errorf("%w: unterminated fenced block", ErrStageSchema)
		}
		i = j
		if _, known := requiredFields[info]; known {
			decls = append(decls, Declaration{
				Provider: info,
				Body:     strings.Join(body, "\n"),
			})
		}
	}
	return decls, nil
}

func validateDeclaration(decl Declaration, available []string) error {
	if !slices.Contains(available, decl.Provider) {
		return fmt.Errorf("%w: provider %q is not available", ErrStageSchema, decl.Provider)
	}
	if !gjson.Valid(decl.Body) {
		return fmt.Errorf("%w: %s declaration is not valid JSON", ErrStageSchema, decl.Provider)
	}
	doc := gjson.Parse(decl.Body)
	for _, field := range requiredFields[decl.Provider] {
		if !doc.Get(field).Exists() {
			return fmt.Errorf("%w: %s declaration missing %q", ErrStageSchema, decl.Provider, field)
		}
	}
	return nil
}
