// -- cmd/capture.go --
package cmd

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/sessionvault/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newCaptureCommand ingests a storage snapshot and assembles it into a
// session. The snapshot JSON comes from a file or stdin; the resulting
// session is printed and persisted.
func newCaptureCommand() *cobra.Command {
	var (
		profileID string
		originURL string
		input     string
		userAgent string
	)

	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Assemble a captured storage snapshot into a session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(input)
			if err != nil {
				return fmt.Errorf("failed to read snapshot: %w", err)
			}

			var snap schemas.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return fmt.Errorf("failed to parse snapshot JSON: %w", err)
			}

			app := newApp(cmd.Context())
			defer app.Close()

			if profileID == "" {
				profileID = app.cfg.Capture.DefaultProfile
			}
			var overrides *schemas.SessionMetadata
			if userAgent != "" {
				overrides = &schemas.SessionMetadata{UserAgent: userAgent}
			}

			sess := app.assembler.Assemble(profileID, originURL, snap, overrides)
			if !app.gateway.SaveSession(cmd.Context(), sess) {
				app.log.Warn("Session not durably persisted; it remains in memory only.")
			}

			out, err := json.MarshalIndent(sess, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	captureCmd.Flags().StringVarP(&profileID, "profile", "p", "", "profile the capture belongs to")
	captureCmd.Flags().StringVarP(&originURL, "url", "u", "", "origin URL of the captured page")
	captureCmd.Flags().StringVarP(&input, "input", "i", "-", "snapshot JSON file, or - for stdin")
	captureCmd.Flags().StringVar(&userAgent, "user-agent", "", "override the recorded user agent")
	_ = captureCmd.MarkFlagRequired("url")
	return captureCmd
}

// readInput reads the named file, or stdin for "-".
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
