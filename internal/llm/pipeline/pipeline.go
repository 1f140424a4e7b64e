// Package pipeline implements the content-generation stages. Every stage is
// stateless: load a template document, render it, issue one provider call,
// normalize the output. Ordering discipline across stages belongs to the
// caller; the stages only chain through their input records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lessonforge/lessonforge/internal/llm/prompt"
	"github.com/lessonforge/lessonforge/internal/llm/provider"
)

var (
	// ErrStageParse marks a total parse failure: no JSON-like substring in
	// the model text at all. Individual missing fields never raise this;
	// they degrade to defaults.
	ErrStageParse = errors.New("stage output could not be parsed")

	// ErrStageSchema marks a declaration missing its provider's required
	// minimal fields. Never silently passed through.
	ErrStageSchema = errors.New("declaration failed schema validation")

	// ErrStageFidelity marks an analysis output that altered the source
	// prose instead of only inserting markers.
	ErrStageFidelity = errors.New("stage altered source content")
)

func runStage(ctx context.Context, p provider.Provider, templateName string, vars map[string]string) (string, provider.TokenUsage, error) {
	tmpl, err := prompt.Load(templateName)
	if err != nil {
		return "", provider.TokenUsage{}, err
	}
	raw, err := tmpl.Prompt(0)
	if err != nil {
		return "", provider.TokenUsage{}, err
	}
	rendered, err := prompt.Render(raw, vars)
	if err != nil {
		return "", provider.TokenUsage{}, fmt.Errorf("template %s: %w", templateName, err)
	}

	resp, err := p.Send(ctx, provider.SendOptions{
		UserText:          rendered,
		SystemInstruction: tmpl.SystemInstruction,
	})
	if err != nil {
		return "", provider.TokenUsage{}, fmt.Errorf("%s stage request failed: %w", templateName, err)
	}
	return resp.Content, resp.Usage, nil
}

// headings extracts markdown heading lines in document order.
func headings(markdown string) []string {
	var out []string
	inFence := false
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(trimmed, "#") {
			out = append(out, trimmed)
		}
	}
	return out
}

// isSubsequence reports whether want appears within have, in order.
func isSubsequence(want, have []string) bool {
	i := 0
	for _, h := range have {
		if i < len(want) && h == want[i] {
			i++
		}
	}
	return i == len(want)
}
