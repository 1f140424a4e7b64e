package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/lessonforge/lessonforge/internal/llm/provider"
)

type Sibling struct {
	Title   string
	Content string
}

type ContentInput struct {
	ModuleTitle      string
	SubModuleTitle   string
	ModuleContext    string
	PreviousSiblings []Sibling
	UserPrompt       string
}

type ContentOutput struct {
	Content string
	Usage   provider.TokenUsage

	// ContextBytes is the size of the accumulated sibling context included
	// in the prompt. Sibling content is deliberately passed in full, never
	// summarized or truncated, to keep terminology stable and avoid
	// repetition across a long generation job; this field makes the
	// resulting prompt growth observable so callers can decide what to do
	// about it.
	ContextBytes int
}

// Content runs the submodule-content stage.
func Content(ctx context.Context, p provider.Provider, in ContentInput) (*ContentOutput, error) {
	var sb strings.Builder
	for _, sibling := range in.PreviousSiblings {
		sb.WriteString("## ")
		sb.WriteString(sibling.Title)
		sb.WriteString("\n\n")
		sb.WriteString(sibling.Content)
		sb.WriteString("\n\n")
	}
	previous := sb.String()
	if previous == "" {
		previous = "(none yet)"
	}

	text, usage, err := runStage(ctx, p, "content", map[string]string{
		"MODULE_TITLE":     in.ModuleTitle,
		"SUBMODULE_TITLE":  in.SubModuleTitle,
		"MODULE_CONTEXT":   in.ModuleContext,
		"PREVIOUS_CONTENT": previous,
		"USER_PROMPT":      in.UserPrompt,
	})
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("content stage returned empty text")
	}
	return &ContentOutput{
		Content:      text,
		Usage:        usage,
		ContextBytes: sb.Len(),
	}, nil
}
