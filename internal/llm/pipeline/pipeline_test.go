package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lessonforge/lessonforge/internal/config"
	"github.com/lessonforge/lessonforge/internal/llm/provider"
)

// fakeProvider scripts stage replies and records the prompts it receives.
type fakeProvider struct {
	reply   string
	err     error
	prompts []string
}

func (p *fakeProvider) Send(_ context.Context, opts provider.SendOptions) (*provider.Response, error) {
	p.prompts = append(p.prompts, opts.UserText)
	if p.err != nil {
		return nil, p.err
	}
	return &provider.Response{
		Content: p.reply,
		Usage:   provider.TokenUsage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
	}, nil
}

func (p *fakeProvider) CountTokens(context.Context, []provider.Content, string) (int64, error) {
	return 0, nil
}

func (p *fakeProvider) Model(context.Context) config.Model {
	return config.MustModel(config.DefaultModelID)
}

func TestStructureFullReply(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{reply: "Here you go:\n```json\n" + `{
		"moduleTitle": "Graph Theory Basics",
		"subModules": [{"title": "Paths"}, {"title": "Cycles"}],
		"syllabus": ["paths", "cycles"],
		"prerequisites": ["m1", "m9"],
		"color": "#0ea5e9",
		"position": {"x": 120, "y": -4}
	}` + "\n```\nGood luck!"}

	out, err := Structure(context.Background(), p, StructureInput{
		Discipline: "mathematics",
		Catalog:    []CatalogEntry{{ID: "m1", Title: "Sets"}, {ID: "m2", Title: "Logic"}},
	})
	require.NoError(t, err)
	require.Equal(t, "Graph Theory Basics", out.ModuleTitle)
	require.Equal(t, []SubModuleOutline{{Title: "Paths"}, {Title: "Cycles"}}, out.SubModules)
	require.Equal(t, []string{"paths", "cycles"}, out.Syllabus)
	require.Equal(t, []string{"m1"}, out.Prerequisites, "unknown prerequisite ids are dropped")
	require.Equal(t, "#0ea5e9", out.Color, "palette match is case-insensitive")
	require.Equal(t, 100.0, out.X)
	require.Equal(t, 0.0, out.Y)
	require.EqualValues(t, 30, out.Usage.TotalTokens)
}

func TestStructureDegradesPerField(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{reply: `{"subModules": ["Intro", "Deep Dive"], "color": "#123456"}`}

	out, err := Structure(context.Background(), p, StructureInput{Discipline: "physics"})
	require.NoError(t, err)
	require.Equal(t, "Untitled module", out.ModuleTitle)
	require.Equal(t, Palette[0], out.Color, "off-palette color maps to the first entry")
	require.Equal(t, 50.0, out.X)
	require.Equal(t, 50.0, out.Y)
	require.Equal(t, []SubModuleOutline{{Title: "Intro"}, {Title: "Deep Dive"}}, out.SubModules,
		"bare-string submodule lists are tolerated")
	require.Empty(t, out.Syllabus)
	require.Empty(t, out.Prerequisites)
}

func TestStructureTotalParseFailure(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{reply: "I could not produce a structure, sorry."}
	_, err := Structure(context.Background(), p, StructureInput{Discipline: "physics"})
	require.ErrorIs(t, err, ErrStageParse)
}

func TestStructureProviderError(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{err: errors.New("boom")}
	_, err := Structure(context.Background(), p, StructureInput{Discipline: "physics"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrStageParse)
}

func TestContextStage(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{reply: "  \nThis module introduces graphs.\n"}
	out, err := Context(context.Background(), p, ContextInput{
		Discipline:  "mathematics",
		ModuleTitle: "Graph Theory Basics",
		Syllabus:    []string{"paths"},
		SubModules:  []string{"Paths"},
	})
	require.NoError(t, err)
	require.Equal(t, "This module introduces graphs.", out.Content)

	require.Len(t, p.prompts, 1)
	require.Contains(t, p.prompts[0], "Graph Theory Basics")
}

func TestContextStageEmptyReply(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{reply: "   \n  "}
	_, err := Context(context.Background(), p, ContextInput{ModuleTitle: "x"})
	require.Error(t, err)
}

func TestContentIncludesFullSiblingContext(t *testing.T) {
	t.Parallel()

	long := "Earlier prose. " + strings.Repeat("terminology stays stable across submodules. ", 200)

	p := &fakeProvider{reply: "New submodule body."}
	out, err := Content(context.Background(), p, ContentInput{
		ModuleTitle:    "Graph Theory Basics",
		SubModuleTitle: "Cycles",
		ModuleContext:  "brief",
		PreviousSiblings: []Sibling{
			{Title: "Paths", Content: long},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "New submodule body.", out.Content)

	require.Len(t, p.prompts, 1)
	require.Contains(t, p.prompts[0], "## Paths")
	require.Contains(t, p.prompts[0], long, "sibling content is passed untruncated")
	require.Greater(t, out.ContextBytes, len(long))
}

func TestContentNoSiblings(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{reply: "First submodule body."}
	out, err := Content(context.Background(), p, ContentInput{
		ModuleTitle:    "Graph Theory Basics",
		SubModuleTitle: "Paths",
		ModuleContext:  "brief",
	})
	require.NoError(t, err)
	require.Equal(t, 0, out.ContextBytes)
	require.Contains(t, p.prompts[0], "(none yet)")
}

func TestAnalysisExtractsMarkers(t *testing.T) {
	t.Parallel()

	source := "# Cycles\n\nA cycle is a closed path.\n\n## Detection\n\nUse DFS."
	p := &fakeProvider{reply: "# Cycles\n\nA cycle is a closed path.\n\n<!--interactive:graph-->\n\n## Detection\n\nUse DFS.\n\n<!--interactive:editor-->"}

	out, err := Analysis(context.Background(), p, AnalysisInput{
		Content:    source,
		DomainType: "mathematics",
		Providers:  []string{"graph", "editor"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"graph", "editor"}, out.Markers)
}

func TestAnalysisRejectsRewrittenHeadings(t *testing.T) {
	t.Parallel()

	source := "# Cycles\n\nprose\n\n## Detection\n\nmore prose"
	p := &fakeProvider{reply: "# Circuits\n\nprose\n\n## Detection\n\nmore prose"}

	_, err := Analysis(context.Background(), p, AnalysisInput{Content: source, DomainType: "math"})
	require.ErrorIs(t, err, ErrStageFidelity)
}

func TestAnalysisIgnoresHeadingsInsideFences(t *testing.T) {
	t.Parallel()

	source := "# Cycles\n\n```python\n# not a heading\nprint(1)\n```\n\nprose"
	p := &fakeProvider{reply: source + "\n\n<!--interactive:editor-->"}

	out, err := Analysis(context.Background(), p, AnalysisInput{Content: source, Providers: []string{"editor"}})
	require.NoError(t, err)
	require.Equal(t, []string{"editor"}, out.Markers)
}

func TestReviewValidDeclarations(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{reply: "# Cycles\n\nprose\n\n```graph\n{\"nodes\": [1,2], \"edges\": [[1,2]]}\n```\n\n```python\nprint(1)\n```"}

	out, err := Review(context.Background(), p, ReviewInput{
		Content:   "# Cycles\n\nprose",
		Providers: []string{"graph"},
	})
	require.NoError(t, err)
	require.Len(t, out.Declarations, 1, "ordinary code fences are not declarations")
	require.Equal(t, "graph", out.Declarations[0].Provider)
}

func TestReviewMissingRequiredField(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{reply: "```plotly\n{\"data\": []}\n```"}
	_, err := Review(context.Background(), p, ReviewInput{Providers: []string{"plotly"}})
	require.ErrorIs(t, err, ErrStageSchema)
	require.Contains(t, err.Error(), "layout")
}

func TestReviewUnavailableProvider(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{reply: "```physics\n{\"bodies\": []}\n```"}
	_, err := Review(context.Background(), p, ReviewInput{Providers: []string{"graph"}})
	require.ErrorIs(t, err, ErrStageSchema)
}

func TestReviewInvalidJSONDeclaration(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{reply: "```chart\nnot json at all\n```"}
	_, err := Review(context.Background(), p, ReviewInput{Providers: []string{"chart"}})
	require.ErrorIs(t, err, ErrStageSchema)
}

func TestReviewUnterminatedFence(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{reply: "prose\n\n```graph\n{\"nodes\": []}"}
	_, err := Review(context.Background(), p, ReviewInput{Providers: []string{"graph"}})
	require.ErrorIs(t, err, ErrStageSchema)
}

func TestHeadingsAndSubsequence(t *testing.T) {
	t.Parallel()

	doc := "# A\n\ntext\n\n```\n# fenced\n```\n\n## B"
	require.Equal(t, []string{"# A", "## B"}, headings(doc))

	require.True(t, isSubsequence([]string{"# A", "## B"}, []string{"# A", "# inserted", "## B"}))
	require.False(t, isSubsequence([]string{"# A", "## B"}, []string{"## B", "# A"}))
	require.True(t, isSubsequence(nil, nil))
}
