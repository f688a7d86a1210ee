// -- cmd/credentials.go --
package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/sessionvault/api/schemas"
)

// newCredentialsCommand groups the stored-login operations.
func newCredentialsCommand() *cobra.Command {
	credentialsCmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Save, list, and delete stored logins.",
	}
	credentialsCmd.AddCommand(
		newCredentialsSaveCommand(),
		newCredentialsListCommand(),
		newCredentialsDeleteCommand(),
	)
	return credentialsCmd
}

func newCredentialsSaveCommand() *cobra.Command {
	var (
		profileID string
		domain    string
		username  string
		email     string
		password  string
		loginURL  string
		autoLogin bool
	)

	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Save a login for a (profile, domain) identity.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newApp(cmd.Context())
			defer app.Close()

			if profileID == "" {
				profileID = app.cfg.Capture.DefaultProfile
			}

			cred, err := app.credentials.Save(schemas.Credential{
				ProfileID: profileID,
				Domain:    domain,
				Username:  username,
				Email:     email,
				Password:  password,
				LoginURL:  loginURL,
				AutoLogin: autoLogin,
			})
			if err != nil {
				return err
			}
			if !app.gateway.SaveCredential(cmd.Context(), cred) {
				app.log.Warn("Credential not durably persisted; it remains in memory only.")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credential %s saved for %s @ %s.\n", cred.ID, cred.Username, cred.Domain)
			return nil
		},
	}

	saveCmd.Flags().StringVarP(&profileID, "profile", "p", "", "profile the login belongs to")
	saveCmd.Flags().StringVarP(&domain, "domain", "d", "", "registrable domain of the site")
	saveCmd.Flags().StringVarP(&username, "username", "U", "", "login username")
	saveCmd.Flags().StringVar(&email, "email", "", "login email")
	saveCmd.Flags().StringVarP(&password, "password", "P", "", "login password (stored obfuscated, never plaintext)")
	saveCmd.Flags().StringVar(&loginURL, "login-url", "", "login page URL for auto-login plans")
	saveCmd.Flags().BoolVar(&autoLogin, "auto-login", false, "mark the credential eligible for auto-login")
	_ = saveCmd.MarkFlagRequired("domain")
	return saveCmd
}

func newCredentialsListCommand() *cobra.Command {
	var profileID string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored logins, newest first. Passwords are never printed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newApp(cmd.Context())
			defer app.Close()

			creds := app.credentials.List()
			if profileID != "" {
				creds = app.credentials.ListByProfile(profileID)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROFILE\tDOMAIN\tUSERNAME\tAUTO-LOGIN\tSAVED\tLAST USED")
			for _, c := range creds {
				lastUsed := "-"
				if c.LastUsed != nil {
					lastUsed = c.LastUsed.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
					c.ID, c.ProfileID, c.Domain, c.Username, c.AutoLogin,
					c.SavedAt.Format(time.RFC3339), lastUsed)
			}
			return w.Flush()
		},
	}

	listCmd.Flags().StringVarP(&profileID, "profile", "p", "", "restrict to one profile")
	return listCmd
}

func newCredentialsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <credential-id>",
		Short: "Delete a stored login. The session for the same identity is untouched.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newApp(cmd.Context())
			defer app.Close()

			if !app.credentials.Delete(args[0]) {
				return fmt.Errorf("credential %s not found", args[0])
			}
			app.gateway.DeleteCredential(cmd.Context(), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Credential %s deleted.\n", args[0])
			return nil
		},
	}
}
