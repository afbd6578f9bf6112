package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// connect <token>: pair with a remote signer and store the session.
func connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <bunker://...|nostrconnect://...>",
		Short: "Pair with a remote signer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := wire.Engine.Connect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), user)
			return nil
		},
	}
}

// disconnect: forget the session.
func disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the paired signer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.Engine.Disconnect(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "disconnected")
			return nil
		},
	}
}
