package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/learnwithjiji/jiji/internal/service"
	"github.com/learnwithjiji/jiji/internal/storage"
)

// NewHistoryCmd creates the 'history' command for listing a user's queries.
func NewHistoryCmd(opts *GlobalOptions) *cobra.Command {
	var userID string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the recent queries of a user",
		Example: `  jiji history --user 6f1c2a4e-8d3b-4f5a-9c7e-1b2d3e4f5a6b
  jiji history --user 6f1c2a4e-8d3b-4f5a-9c7e-1b2d3e4f5a6b --limit 25 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts, userID, limit, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User UUID (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", storage.DefaultHistoryLimit, "Maximum number of queries")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *GlobalOptions, userID string, limit int, jsonOutput bool) error {
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("invalid --user %q: must be a UUID", userID)
	}

	a, err := newApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.svc.GetQueryHistory(cmd.Context(), userID, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No queries recorded.")
		return nil
	}

	fmt.Fprintf(out, "Recent queries (%d):\n\n", len(records))
	for _, r := range records {
		fmt.Fprintf(out, "  %s  %s\n", r.CreatedAt.UTC().Format(service.TimestampLayout), r.Text)
	}
	return nil
}
