package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/learnwithjiji/jiji/internal/service"
)

// NewAskCmd creates the 'ask' command for answering a query from the shell.
func NewAskCmd(opts *GlobalOptions) *cobra.Command {
	var userID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer a learning query",
		Long: `Answer a learning query the same way POST /ask-jiji does.

The query is stored (for --user when given, anonymously otherwise) and
matched against the active resource catalog.`,
		Example: `  jiji ask "explain recursion"
  jiji ask what is a closure --user 6f1c2a4e-8d3b-4f5a-9c7e-1b2d3e4f5a6b
  jiji ask "sorting algorithms" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, strings.Join(args, " "), userID, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User UUID to record the query for")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

func runAsk(cmd *cobra.Command, opts *GlobalOptions, query, userID string, jsonOutput bool) error {
	if userID != "" {
		if _, err := uuid.Parse(userID); err != nil {
			return fmt.Errorf("invalid --user %q: must be a UUID", userID)
		}
	}

	a, err := newApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.svc.ProcessQuery(cmd.Context(), query, userID)
	if errors.Is(err, service.ErrEmptyQuery) {
		return errors.New("query must contain text")
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, resp)
	}

	fmt.Fprintln(out, resp.Answer)
	if len(resp.Resources) > 0 {
		fmt.Fprintln(out)
		for _, r := range resp.Resources {
			fmt.Fprintf(out, "  • %s [%s]\n", r.Title, r.Type)
			fmt.Fprintf(out, "    %s\n", r.URL)
			if r.Description != nil {
				fmt.Fprintf(out, "    %s\n", *r.Description)
			}
		}
	}
	if resp.Metadata.QueryID == nil {
		fmt.Fprintln(out, "\n(query was not saved)")
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
