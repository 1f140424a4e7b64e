package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage persisted chat sessions",
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted sessions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		for _, s := range a.Sessions.List() {
			created := time.UnixMilli(s.CreatedAt).Format("2006-01-02 15:04")
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d turns  %s\n",
				s.ID, created, s.TurnCount(), s.Title)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a persisted session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		return a.Sessions.Delete(cmd.Context(), args[0])
	},
}
