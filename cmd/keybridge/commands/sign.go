package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"keybridge/internal/domain"
)

// pubkey: print the user public key of the paired signer.
func pubkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey",
		Short: "Print the user public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := activeProvider()
			if err != nil {
				return err
			}
			pub, err := p.GetPublicKey(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pub)
			return nil
		},
	}
}

// ping: round-trip the signer.
func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the remote signer answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.Engine.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "pong")
			return nil
		},
	}
}

// sign [file|-]: sign an unsigned event read as JSON.
func signCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sign [file|-]",
		Short: "Have the remote signer sign an event",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			var evt domain.Event
			if err := json.NewDecoder(in).Decode(&evt); err != nil {
				return fmt.Errorf("read event: %w", err)
			}

			p, err := activeProvider()
			if err != nil {
				return err
			}
			if err := p.SignEvent(cmd.Context(), &evt); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			return enc.Encode(evt)
		},
	}
}
