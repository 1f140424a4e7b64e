package app

import (
	"context"
	"log/slog"

	"github.com/lessonforge/lessonforge/internal/llm/pipeline"
	"github.com/lessonforge/lessonforge/internal/llm/provider"
)

// GenerateRequest describes one module-generation job. Providers is the
// already existence-checked list of interactive-element providers; an empty
// list skips the enrichment stages.
type GenerateRequest struct {
	Discipline      string
	Catalog         []pipeline.CatalogEntry
	SourceDocuments []string
	UserPrompt      string
	DomainType      string
	Providers       []string
}

type SubModuleResult struct {
	Title        string
	Content      string
	ContextBytes int
	Markers      []string
	Declarations []pipeline.Declaration
}

type GenerateResult struct {
	Structure  *pipeline.StructureOutput
	Brief      *pipeline.ContextOutput
	SubModules []SubModuleResult
	TotalUsage provider.TokenUsage
}

// GenerateModule runs the full stage sequence: structure, module brief, then
// per submodule content, analysis, and review. Stages are stateless; all
// chaining happens here through their input records, and every previously
// generated sibling is passed to the content stage unmodified and
// untruncated.
func (a *App) GenerateModule(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	result := &GenerateResult{}

	structure, err := pipeline.Structure(ctx, a.Provider, pipeline.StructureInput{
		Discipline:      req.Discipline,
		Catalog:         req.Catalog,
		SourceDocuments: req.SourceDocuments,
		UserPrompt:      req.UserPrompt,
	})
	if err != nil {
		return nil, err
	}
	result.Structure = structure
	addUsage(&result.TotalUsage, structure.Usage)

	subTitles := make([]string, 0, len(structure.SubModules))
	for _, sm := range structure.SubModules {
		subTitles = append(subTitles, sm.Title)
	}

	brief, err := pipeline.Context(ctx, a.Provider, pipeline.ContextInput{
		Discipline:  req.Discipline,
		ModuleTitle: structure.ModuleTitle,
		Syllabus:    structure.Syllabus,
		SubModules:  subTitles,
	})
	if err != nil {
		return nil, err
	}
	result.Brief = brief
	addUsage(&result.TotalUsage, brief.Usage)

	var siblings []pipeline.Sibling
	for _, sm := range structure.SubModules {
		content, err := pipeline.Content(ctx, a.Provider, pipeline.ContentInput{
			ModuleTitle:      structure.ModuleTitle,
			SubModuleTitle:   sm.Title,
			ModuleContext:    brief.Content,
			PreviousSiblings: siblings,
			UserPrompt:       req.UserPrompt,
		})
		if err != nil {
			return nil, err
		}
		addUsage(&result.TotalUsage, content.Usage)
		slog.Debug("generated submodule",
			"submodule", sm.Title, "context_bytes", content.ContextBytes)

		sub := SubModuleResult{
			Title:        sm.Title,
			Content:      content.Content,
			ContextBytes: content.ContextBytes,
		}

		if len(req.Providers) > 0 {
			analysis, err := pipeline.Analysis(ctx, a.Provider, pipeline.AnalysisInput{
				Content:    content.Content,
				DomainType: req.DomainType,
				Providers:  req.Providers,
			})
			if err != nil {
				return nil, err
			}
			addUsage(&result.TotalUsage, analysis.Usage)
			sub.Markers = analysis.Markers

			review, err := pipeline.Review(ctx, a.Provider, pipeline.ReviewInput{
				Content:   analysis.Content,
				Providers: req.Providers,
			})
			if err != nil {
				return nil, err
			}
			addUsage(&result.TotalUsage, review.Usage)
			sub.Content = review.Content
			sub.Declarations = review.Declarations
		}

		result.SubModules = append(result.SubModules, sub)

		// Sibling context accumulates the pre-enrichment prose so later
		// submodules chain on content, not on element declarations.
		siblings = append(siblings, pipeline.Sibling{Title: sm.Title, Content: content.Content})
	}

	return result, nil
}

func addUsage(total *provider.TokenUsage, u provider.TokenUsage) {
	total.InputTokens += u.InputTokens
	total.OutputTokens += u.OutputTokens
	total.TotalTokens += u.TotalTokens
}
