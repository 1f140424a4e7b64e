package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt...]",
	Short: "Run a single chat prompt",
	Args:  cobra.MinimumNArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.Join(args, " ")
		return runPrompt(cmd, prompt)
	},
}

func runPrompt(cmd *cobra.Command, prompt string) error {
	a, cleanup, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if !a.Config().IsConfigured() {
		return fmt.Errorf("no API key configured - set LESSONFORGE_API_KEY or GEMINI_API_KEY")
	}

	finalPrompt, err := MaybePrependStdin(prompt)
	if err != nil {
		return err
	}
	if strings.TrimSpace(finalPrompt) == "" {
		return fmt.Errorf("no prompt provided")
	}

	ctx := cmd.Context()
	s, err := a.NewSession(ctx)
	if err != nil {
		return err
	}

	result, err := a.SendChat(ctx, s, finalPrompt, nil)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Reply.Text())
	if result.Usage.TotalTokens > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "tokens: %d in, %d out\n",
			result.Usage.InputTokens, result.Usage.OutputTokens)
	}
	return nil
}
