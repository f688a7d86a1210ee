// -- cmd/sessions.go --
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/sessionvault/api/schemas"
	"github.com/xkilldash9x/sessionvault/internal/classifier"
)

// newSessionsCommand groups the session lifecycle operations.
func newSessionsCommand() *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List, inspect, export, import, and revoke captured sessions.",
	}
	sessionsCmd.AddCommand(
		newSessionsListCommand(),
		newSessionsShowCommand(),
		newSessionsRevokeCommand(),
		newSessionsDeleteCommand(),
		newSessionsExportCommand(),
		newSessionsImportCommand(),
		newSessionsWatchCommand(),
	)
	return sessionsCmd
}

func newSessionsWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the periodic status sweep until interrupted, persisting changes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newApp(cmd.Context())
			defer app.Close()

			app.startBackground(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Watching session expiry; Ctrl+C to stop.")
			<-cmd.Context().Done()
			return nil
		},
	}
}

func newSessionsListCommand() *cobra.Command {
	var profileID, domain string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newApp(cmd.Context())
			defer app.Close()

			var sessions []*schemas.Session
			switch {
			case profileID != "" && domain != "":
				sessions = app.sessions.FindByDomain(profileID, domain)
			case profileID != "":
				sessions = app.sessions.ListByProfile(profileID)
			default:
				sessions = app.sessions.List()
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROFILE\tDOMAIN\tSTATUS\tLOGIN\tCAPTURED\tEXPIRES")
			for _, s := range sessions {
				expires := "-"
				if s.ExpiresAt != nil {
					expires = s.ExpiresAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.ProfileID, s.Domain, s.Status, s.LoginState,
					s.CapturedAt.Format(time.RFC3339), expires)
			}
			return w.Flush()
		},
	}

	listCmd.Flags().StringVarP(&profileID, "profile", "p", "", "restrict to one profile")
	listCmd.Flags().StringVarP(&domain, "domain", "d", "", "filter domains containing this fragment")
	return listCmd
}

func newSessionsShowCommand() *cobra.Command {
	var reveal bool

	showCmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print one session as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newApp(cmd.Context())
			defer app.Close()

			sess, ok := app.sessions.Get(args[0])
			if !ok {
				return fmt.Errorf("session %s not found", args[0])
			}
			view := *sess
			if !reveal {
				view.Tokens = maskArtifacts(sess.Tokens)
			}

			out, err := json.MarshalIndent(&view, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	showCmd.Flags().BoolVar(&reveal, "reveal", false, "print raw token values instead of masked ones")
	return showCmd
}

// maskArtifacts redacts token values for display output.
func maskArtifacts(tokens []schemas.Artifact) []schemas.Artifact {
	out := make([]schemas.Artifact, len(tokens))
	for i, t := range tokens {
		t.Value = classifier.Mask(t.Value)
		t.DecodedPayload = nil
		out[i] = t
	}
	return out
}

func newSessionsRevokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <session-id>",
		Short: "Mark a session revoked. Revocation is permanent.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newApp(cmd.Context())
			defer app.Close()

			if !app.sessions.Revoke(args[0]) {
				return fmt.Errorf("session %s not found", args[0])
			}
			if sess, ok := app.sessions.Get(args[0]); ok {
				app.gateway.SaveSession(cmd.Context(), sess)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s revoked.\n", args[0])
			return nil
		},
	}
}

func newSessionsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session from memory and durable storage.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newApp(cmd.Context())
			defer app.Close()

			if !app.sessions.Delete(args[0]) {
				return fmt.Errorf("session %s not found", args[0])
			}
			app.gateway.DeleteSession(cmd.Context(), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s deleted.\n", args[0])
			return nil
		},
	}
}

func newSessionsExportCommand() *cobra.Command {
	var (
		sessionID string
		profileID string
		output    string
	)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export one session or a whole profile as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newApp(cmd.Context())
			defer app.Close()

			var data []byte
			var err error
			switch {
			case sessionID != "":
				data, err = app.sessions.ExportSession(sessionID)
			case profileID != "":
				data, err = app.sessions.ExportProfile(profileID)
			default:
				return fmt.Errorf("either --session or --profile is required")
			}
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			return os.WriteFile(output, data, 0o600)
		},
	}

	exportCmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to export")
	exportCmd.Flags().StringVarP(&profileID, "profile", "p", "", "profile to export")
	exportCmd.Flags().StringVarP(&output, "output", "o", "-", "output file, or - for stdout")
	return exportCmd
}

func newSessionsImportCommand() *cobra.Command {
	var input string

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import sessions from an export document. Imports always mint new ids.",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(input)
			if err != nil {
				return fmt.Errorf("failed to read import document: %w", err)
			}

			app := newApp(cmd.Context())
			defer app.Close()

			imported, err := app.sessions.Import(data)
			if err != nil {
				return err
			}
			for _, sess := range imported {
				app.gateway.SaveSession(cmd.Context(), sess)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d session(s).\n", len(imported))
			return nil
		},
	}

	importCmd.Flags().StringVarP(&input, "input", "i", "-", "export document file, or - for stdin")
	return importCmd
}
