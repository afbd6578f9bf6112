package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"keybridge/internal/crypto"
	"keybridge/internal/domain"
)

func cipherFor(p domain.Provider, scheme string) (domain.Cipher, error) {
	s, err := crypto.ParseScheme(scheme)
	if err != nil {
		return nil, err
	}
	if s == crypto.NIP04 {
		return p.NIP04(), nil
	}
	return p.NIP44(), nil
}

// encrypt <pubkey> <plaintext>
func encryptCmd() *cobra.Command {
	var scheme string
	cmd := &cobra.Command{
		Use:   "encrypt <pubkey> <plaintext>",
		Short: "Encrypt a message to pubkey with the user key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := activeProvider()
			if err != nil {
				return err
			}
			c, err := cipherFor(p, scheme)
			if err != nil {
				return err
			}
			ct, err := c.Encrypt(cmd.Context(), args[1], args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ct)
			return nil
		},
	}
	cmd.Flags().StringVar(&scheme, "scheme", "nip44", "nip44 or nip04")
	return cmd
}

// decrypt <pubkey> <ciphertext>
func decryptCmd() *cobra.Command {
	var scheme string
	cmd := &cobra.Command{
		Use:   "decrypt <pubkey> <ciphertext>",
		Short: "Decrypt a message from pubkey with the user key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := activeProvider()
			if err != nil {
				return err
			}
			c, err := cipherFor(p, scheme)
			if err != nil {
				return err
			}
			pt, err := c.Decrypt(cmd.Context(), args[1], args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pt)
			return nil
		},
	}
	cmd.Flags().StringVar(&scheme, "scheme", "nip44", "nip44 or nip04")
	return cmd
}
