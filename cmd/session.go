package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"

	statusadapter "github.com/bnema/session-tokens/internal/adapters/render/status"
	"github.com/bnema/session-tokens/internal/domain"
	"github.com/spf13/cobra"
)

func newSessionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage sessions",
	}

	cmd.AddCommand(
		newSessionCreateCmd(app),
		newSessionListCmd(app),
		newSessionShowCmd(app),
		newSessionTransitionCmd(app, "pause", "Pause an active session", app.manager.PauseSession),
		newSessionTransitionCmd(app, "resume", "Resume a paused session", app.manager.ResumeSession),
		newSessionTransitionCmd(app, "end", "End a session", app.manager.EndSession),
		newSessionDeleteCmd(app),
		newSessionChildCmd(app),
	)

	return cmd
}

func newSessionCreateCmd(app *app) *cobra.Command {
	var (
		name       string
		initiator  string
		intent     string
		parentID   string
		energyCost int
		duration   int
		boundaries map[string]string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a new session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := domain.NewToken(name, initiator, energyCost)
			if err != nil {
				return err
			}
			token.Intent = intent
			token.ParentID = domain.TokenID(parentID)
			token.DurationMinutes = duration

			token.Boundaries, err = parseBoolMap(boundaries)
			if err != nil {
				return fmt.Errorf("parse --boundary: %w", err)
			}

			created, err := app.manager.CreateSession(cmd.Context(), token)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), created)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), created.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Session name")
	cmd.Flags().StringVar(&initiator, "initiator", "cli", "Who started the session")
	cmd.Flags().StringVar(&intent, "intent", "", "What the session is for")
	cmd.Flags().StringVar(&parentID, "parent", "", "Parent session id")
	cmd.Flags().IntVar(&energyCost, "energy", 0, "Energy cost of the session")
	cmd.Flags().IntVar(&duration, "duration", domain.DefaultDurationMinutes, "Duration cap in minutes")
	cmd.Flags().StringToStringVar(&boundaries, "boundary", nil, "Boundary as key=bool (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newSessionListCmd(app *app) *cobra.Command {
	var (
		state  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := domain.State(strings.ToLower(strings.TrimSpace(state)))
			if filter != "" && !filter.Valid() {
				return fmt.Errorf("unknown state %q", state)
			}

			return writeSessionsOutput(cmd, app, app.manager.List(cmd.Context(), filter), asJSON)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Only list sessions in this state (active, paused, completed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func newSessionShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := app.manager.Get(cmd.Context(), domain.TokenID(args[0]))
			if err != nil {
				return err
			}

			return writeSessionsOutput(cmd, app, []domain.Token{token}, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func newSessionTransitionCmd(app *app, use, short string, transition func(ctx context.Context, id domain.TokenID) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.TokenID(args[0])
			if err := transition(cmd.Context(), id); err != nil {
				return err
			}

			token, err := app.manager.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", token.ID, describeState(token))
			return err
		},
	}
}

func newSessionDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a completed session from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.manager.DeleteSession(cmd.Context(), domain.TokenID(args[0])); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return err
		},
	}
}

func newSessionChildCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "child",
		Short: "Link or unlink child sessions",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <parent-id> <child-id>",
			Short: "Record a session as a child of another",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.manager.AddChild(cmd.Context(), domain.TokenID(args[0]), domain.TokenID(args[1]))
			},
		},
		&cobra.Command{
			Use:   "remove <parent-id> <child-id>",
			Short: "Drop a child from a session",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.manager.RemoveChild(cmd.Context(), domain.TokenID(args[0]), domain.TokenID(args[1]))
			},
		},
	)

	return cmd
}

func writeSessionsOutput(cmd *cobra.Command, app *app, tokens []domain.Token, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), tokens)
	}

	for i := range tokens {
		tokens[i].Name = sanitizeForTerminal(tokens[i].Name)
		tokens[i].Intent = sanitizeForTerminal(tokens[i].Intent)
	}

	rendered, err := app.statusRenderer(tokens, statusadapter.RenderOptions{Now: app.now()})
	if err != nil {
		return fmt.Errorf("render sessions: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func describeState(token domain.Token) string {
	if token.EndReason == domain.EndReasonNone {
		return string(token.State)
	}
	return fmt.Sprintf("%s (%s)", token.State, token.EndReason)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseBoolMap turns key=bool flag pairs into boundaries.
func parseBoolMap(raw map[string]string) (domain.Boundaries, error) {
	out := make(domain.Boundaries, len(raw))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := strings.TrimSpace(k)
		if key == "" {
			return nil, fmt.Errorf("empty boundary name")
		}
		value, err := strconv.ParseBool(strings.TrimSpace(raw[k]))
		if err != nil {
			return nil, fmt.Errorf("boundary %s: value %q is not a bool", key, raw[k])
		}
		out[key] = value
	}

	return out, nil
}

func sanitizeForTerminal(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
}
