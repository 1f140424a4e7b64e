package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lessonforge/lessonforge/internal/app"
)

func init() {
	generateCmd.Flags().String("discipline", "", "Discipline metadata and goals (required)")
	generateCmd.Flags().String("domain-type", "general", "Domain classification for interactive analysis")
	generateCmd.Flags().StringSlice("providers", nil, "Available interactive-element providers")
	generateCmd.Flags().StringSlice("source", nil, "Source document files to include")
	generateCmd.Flags().String("notes", "", "Author notes passed to every stage")
	_ = generateCmd.MarkFlagRequired("discipline")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the course-module generation pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if !a.Config().IsConfigured() {
			return fmt.Errorf("no API key configured - set LESSONFORGE_API_KEY or GEMINI_API_KEY")
		}

		discipline, _ := cmd.Flags().GetString("discipline")
		domainType, _ := cmd.Flags().GetString("domain-type")
		providers, _ := cmd.Flags().GetStringSlice("providers")
		sources, _ := cmd.Flags().GetStringSlice("source")
		notes, _ := cmd.Flags().GetString("notes")

		var docs []string
		for _, path := range sources {
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read source document %q: %w", path, err)
			}
			docs = append(docs, string(raw))
		}

		result, err := a.GenerateModule(cmd.Context(), app.GenerateRequest{
			Discipline:      discipline,
			SourceDocuments: docs,
			UserPrompt:      notes,
			DomainType:      domainType,
			Providers:       providers,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n\n", result.Structure.ModuleTitle)
		if len(result.Structure.Syllabus) > 0 {
			fmt.Fprintf(out, "Syllabus:\n- %s\n\n", strings.Join(result.Structure.Syllabus, "\n- "))
		}
		for _, sub := range result.SubModules {
			fmt.Fprintf(out, "## %s\n\n%s\n\n", sub.Title, sub.Content)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "tokens: %d in, %d out\n",
			result.TotalUsage.InputTokens, result.TotalUsage.OutputTokens)
		return nil
	},
}
