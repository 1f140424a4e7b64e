package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/lessonforge/lessonforge/internal/llm/provider"
)

type ContextInput struct {
	Discipline  string
	ModuleTitle string
	Syllabus    []string
	SubModules  []string
}

type ContextOutput struct {
	Content string
	Usage   provider.TokenUsage
}

// Context runs the module-brief stage. The output is free markdown consumed
// only by later stages through string interpolation, so the only contract is
// non-empty text.
func Context(ctx context.Context, p provider.Provider, in ContextInput) (*ContextOutput, error) {
	text, usage, err := runStage(ctx, p, "context", map[string]string{
		"DISCIPLINE":   in.Discipline,
		"MODULE_TITLE": in.ModuleTitle,
		"SYLLABUS":     strings.Join(in.Syllabus, "\n"),
		"SUBMODULES":   strings.Join(in.SubModules, "\n"),
	})
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("context stage returned empty text")
	}
	return &ContextOutput{Content: text, Usage: usage}, nil
}
