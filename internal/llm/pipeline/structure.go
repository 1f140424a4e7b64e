package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lessonforge/lessonforge/internal/llm/provider"
)

// Palette is the fixed set of module colors. Anything the model returns
// outside this set maps to the first entry.
var Palette = []string{
	"#4F46E5", // indigo
	"#0EA5E9", // sky
	"#10B981", // emerald
	"#F59E0B", // amber
	"#EF4444", // red
	"#8B5CF6", // violet
	"#EC4899", // pink
	"#14B8A6", // teal
}

const defaultModuleTitle = "Untitled module"

type CatalogEntry struct {
	ID    string
	Title string
}

type StructureInput struct {
	Discipline      string
	Catalog         []CatalogEntry
	SourceDocuments []string
	UserPrompt      string
}

type SubModuleOutline struct {
	Title string
}

// StructureOutput is fully populated even when the model omits fields;
// each field degrades independently to its documented default.
type StructureOutput struct {
	ModuleTitle   string
	SubModules    []SubModuleOutline
	Syllabus      []string
	Prerequisites []string
	Color         string
	X             float64
	Y             float64
	Usage         provider.TokenUsage
}

// Structure runs the module-structure stage. Only a total parse failure (no
// JSON-like substring in the reply) fails the stage.
func Structure(ctx context.Context, p provider.Provider, in StructureInput) (*StructureOutput, error) {
	catalog := make([]string, 0, len(in.Catalog))
	for _, entry := range in.Catalog {
		catalog = append(catalog, entry.ID+": "+entry.Title)
	}

	text, usage, err := runStage(ctx, p, "structure", map[string]string{
		"DISCIPLINE":       in.Discipline,
		"CATALOG":          strings.Join(catalog, "\n"),
		"SOURCE_DOCUMENTS": strings.Join(in.SourceDocuments, "\n\n"),
		"USER_PROMPT":      in.UserPrompt,
	})
	if err != nil {
		return nil, err
	}

	blob := extractJSON(text)
	if blob == "" {
		return nil, fmt.Errorf("%w: no JSON object in structure reply", ErrStageParse)
	}
	doc := gjson.Parse(blob)

	out := &StructureOutput{
		ModuleTitle: defaultModuleTitle,
		Color:       Palette[0],
		X:           50,
		Y:           50,
		Usage:       usage,
	}

	if v := doc.Get("moduleTitle"); v.Type == gjson.String && v.String() != "" {
		out.ModuleTitle = v.String()
	} else {
		slog.Debug("structure stage: missing moduleTitle, using default")
	}

	for _, sm := range doc.Get("subModules").Array() {
		title := sm.Get("title").String()
		if title == "" {
			// tolerate bare-string submodule lists
			title = sm.String()
		}
		if title != "" {
			out.SubModules = append(out.SubModules, SubModuleOutline{Title: title})
		}
	}

	for _, item := range doc.Get("syllabus").Array() {
		if s := item.String(); s != "" {
			out.Syllabus = append(out.Syllabus, s)
		}
	}

	known := make(map[string]struct{}, len(in.Catalog))
	for _, entry := range in.Catalog {
		known[entry.ID] = struct{}{}
	}
	for _, item := range doc.Get("prerequisites").Array() {
		id := item.String()
		if _, ok := known[id]; ok {
			out.Prerequisites = append(out.Prerequisites, id)
		} else if id != "" {
			slog.Debug("structure stage: dropping unknown prerequisite", "id", id)
		}
	}

	if color := doc.Get("color").String(); color != "" {
		if inPalette(color) {
			out.Color = color
		} else {
			slog.Debug("structure stage: color not in palette, using default", "color", color)
		}
	}

	if v := doc.Get("position.x"); v.Exists() {
		out.X = clampCoord(v.Float())
	}
	if v := doc.Get("position.y"); v.Exists() {
		out.Y = clampCoord(v.Float())
	}

	return out, nil
}

func inPalette(color string) bool {
	for _, c := range Palette {
		if strings.EqualFold(c, color) {
			return true
		}
	}
	return false
}

func clampCoord(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// extractJSON returns the outermost {...} span of the text, tolerating
// surrounding prose and markdown fences.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
