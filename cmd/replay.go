// -- cmd/replay.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/sessionvault/api/schemas"
)

// newReplayCommand groups the replay-plan generators. Plans are emitted as
// JSON for the external browser-automation layer; nothing is executed here.
func newReplayCommand() *cobra.Command {
	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Generate declarative replay plans for the automation layer.",
	}
	replayCmd.AddCommand(
		newReplayLoginCommand(),
		newReplayInjectCommand(),
	)
	return replayCmd
}

func newReplayLoginCommand() *cobra.Command {
	var (
		profileID string
		domain    string
	)

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Build an auto-login plan from the stored credential for (profile, domain).",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newApp(cmd.Context())
			defer app.Close()

			if profileID == "" {
				profileID = app.cfg.Capture.DefaultProfile
			}
			cred, ok := app.credentials.FindByIdentity(profileID, domain)
			if !ok {
				return fmt.Errorf("no credential stored for profile %s and domain %s", profileID, domain)
			}

			plan := app.generator.AutoLogin(cred)
			app.credentials.Touch(cred.ID)
			app.gateway.SaveCredential(cmd.Context(), cred)
			return printPlan(cmd, plan)
		},
	}

	loginCmd.Flags().StringVarP(&profileID, "profile", "p", "", "profile the credential belongs to")
	loginCmd.Flags().StringVarP(&domain, "domain", "d", "", "registrable domain of the site")
	_ = loginCmd.MarkFlagRequired("domain")
	return loginCmd
}

func newReplayInjectCommand() *cobra.Command {
	var sessionID string

	injectCmd := &cobra.Command{
		Use:   "inject",
		Short: "Build a storage-injection plan from a captured session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newApp(cmd.Context())
			defer app.Close()

			sess, ok := app.sessions.Get(sessionID)
			if !ok {
				return fmt.Errorf("session %s not found", sessionID)
			}
			if sess.Status == schemas.StatusRevoked {
				return fmt.Errorf("session %s is revoked and cannot be replayed", sessionID)
			}

			plan := app.generator.SessionInjection(sess)
			app.sessions.Touch(sess.ID)
			app.gateway.SaveSession(cmd.Context(), sess)
			return printPlan(cmd, plan)
		},
	}

	injectCmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to inject")
	_ = injectCmd.MarkFlagRequired("session")
	return injectCmd
}

func printPlan(cmd *cobra.Command, plan *schemas.ReplayPlan) error {
	out, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
