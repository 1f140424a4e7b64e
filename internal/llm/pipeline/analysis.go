package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/lessonforge/lessonforge/internal/llm/provider"
)

// MarkerRE matches the insertion markers the analysis stage adds, e.g.
// <!--interactive:plotly-->.
var MarkerRE = regexp.MustCompile(`<!--interactive:([a-z0-9]+)-->`)

type AnalysisInput struct {
	Content    string
	DomainType string
	// Providers is the pre-filtered list of available interactive-element
	// providers; existence checking happens at the boundary, not here.
	Providers []string
}

type AnalysisOutput struct {
	Content string
	Markers []string
	Usage   provider.TokenUsage
}

// Analysis inserts interactive-element markers into a generated body. The
// stage contract requires the original prose and headings verbatim except
// for marker insertion; a reply that drops or rewrites headings is a stage
// failure.
func Analysis(ctx context.Context, p provider.Provider, in AnalysisInput) (*AnalysisOutput, error) {
	text, usage, err := runStage(ctx, p, "analysis", map[string]string{
		"CONTENT":     in.Content,
		"DOMAIN_TYPE": in.DomainType,
		"PROVIDERS":   strings.Join(in.Providers, ", "),
	})
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("analysis stage returned empty text")
	}

	if !isSubsequence(headings(in.Content), headings(text)) {
		return nil, fmt.Errorf("%w: headings were dropped or rewritten", ErrStageFidelity)
	}

	var markers []string
	for _, m := range MarkerRE.FindAllStringSubmatch(text, -1) {
		markers = append(markers, m[1])
	}

	return &AnalysisOutput{Content: text, Markers: markers, Usage: usage}, nil
}
