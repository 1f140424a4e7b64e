package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/lessonforge/lessonforge/internal/app"
	"github.com/lessonforge/lessonforge/internal/config"
	"github.com/lessonforge/lessonforge/internal/llm/provider"
	"github.com/lessonforge/lessonforge/internal/log"
	"github.com/lessonforge/lessonforge/internal/storage"
	"github.com/lessonforge/lessonforge/internal/version"
)

func init() {
	rootCmd.PersistentFlags().StringP("data-dir", "D", "", "Custom lessonforge data directory")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.PersistentFlags().StringP("model", "m", "", "Override the model for this run")

	rootCmd.Flags().StringP("prompt", "p", "", "Run a single chat prompt and exit")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(sessionsCmd)
}

var rootCmd = &cobra.Command{
	Use:   "lessonforge",
	Short: "Course-content studio backend for a generative provider",
	Long: `Lessonforge is the session and generation core of an education-content
studio. It manages persisted chat sessions with a generative model and runs
the multi-stage course generation pipeline (structure, brief, content,
analysis, review).`,
	Example: `
	# One-shot chat prompt
	lessonforge -p "Explain recursion"

	# Same, as a subcommand
	lessonforge run "Explain recursion"

	# Generate a course module
	lessonforge generate --discipline "Linear algebra for CS undergraduates"

	# List persisted sessions
	lessonforge sessions list
  `,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, _ := cmd.Flags().GetString("prompt")
		if prompt != "" {
			return runPrompt(cmd, prompt)
		}
		return cmd.Help()
	},
}

func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(version.Version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// setupApp wires storage, config, provider, and the app for a command run.
func setupApp(cmd *cobra.Command) (*app.App, func(), error) {
	debug, _ := cmd.Flags().GetBool("debug")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get current working directory: %w", err)
	}
	if err := config.LoadDotEnv(cwd); err != nil {
		return nil, nil, err
	}

	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, err
		}
		dataDir = filepath.Join(home, ".lessonforge")
	}
	if err := createDataDir(dataDir); err != nil {
		return nil, nil, err
	}

	log.Setup(filepath.Join(dataDir, "lessonforge.log"), debug)

	kv, err := storage.Connect(ctx, dataDir)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { kv.Close() }

	cfg := config.New(config.ResolveAPIKey(), dataDir, debug, kv)

	if modelFlag, _ := cmd.Flags().GetString("model"); modelFlag != "" {
		if err := cfg.SetModel(ctx, modelFlag); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	appInstance, err := app.New(ctx, cfg, provider.NewClient(cfg))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return appInstance, cleanup, nil
}

func createDataDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create data directory: %q %w", dir, err)
	}

	gitIgnorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(gitIgnorePath); os.IsNotExist(err) {
		if err := os.WriteFile(gitIgnorePath, []byte("*\n"), 0o644); err != nil {
			return fmt.Errorf("failed to create .gitignore file: %q %w", gitIgnorePath, err)
		}
	}

	return nil
}

// MaybePrependStdin prepends piped stdin to the prompt, if any.
func MaybePrependStdin(prompt string) (string, error) {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return prompt, err
	}
	if fi.Mode()&os.ModeNamedPipe == 0 {
		return prompt, nil
	}
	bts, err := io.ReadAll(os.Stdin)
	if err != nil {
		return prompt, err
	}
	return string(bts) + "\n\n" + prompt, nil
}
