package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"keybridge/internal/domain"
	"keybridge/internal/protocol/uri"
)

// status: print the engine state and the redacted session.
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pairing state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state:         %s\n", wire.Engine.State())
			if err := wire.Engine.Err(); err != nil {
				fmt.Fprintf(out, "error:         %v\n", err)
			}
			sess, ok := wire.Engine.Session()
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "user pubkey:   %s\n", sess.UserPubKey)
			fmt.Fprintf(out, "remote pubkey: %s\n", sess.RemotePubKey)
			fmt.Fprintf(out, "client pubkey: %s\n", sess.ClientPubKey)
			fmt.Fprintf(out, "relays:        %s\n", strings.Join(sess.Relays, ", "))
			if sess.Name != "" {
				fmt.Fprintf(out, "name:          %s\n", sess.Name)
			}
			if len(sess.Perms) > 0 {
				fmt.Fprintf(out, "perms:         %s\n", strings.Join(sess.Perms, ","))
			}
			if sess.LastContact > 0 {
				fmt.Fprintf(out, "last contact:  %s\n", time.Unix(sess.LastContact, 0).Format(time.RFC3339))
			}
			fmt.Fprintf(out, "token:         %s\n", uri.Format(domain.ConnectionDescriptor{
				Scheme:       domain.SchemeBunker,
				RemotePubKey: sess.RemotePubKey,
				Relays:       sess.Relays,
				Name:         sess.Name,
			}))
			return nil
		},
	}
}
