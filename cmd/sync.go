// -- cmd/sync.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newSyncCommand pushes the local cache to the remote backend.
func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push locally cached sessions and credentials to the remote backend.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newApp(cmd.Context())
			defer app.Close()

			counts, err := app.gateway.SyncFromCache(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d session(s) and %d credential(s); %d failure(s).\n",
				counts.Sessions, counts.Credentials, counts.Failures)
			return nil
		},
	}
}
