package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vaultkeep/server/internal/crypto"
)

// newHashCmd implements `vaultkeep hash`, producing a PHC-formatted
// Argon2id hash of an admin token for storage in the server's config —
// the admin-panel login credential spec section 6 calls out, never a
// user's master password (that hash never leaves the client).
func newHashCmd() *cobra.Command {
	var preset string
	var password string

	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Hash an admin-panel token for storage in the server config",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := crypto.PresetByName(preset)
			if err != nil {
				return err
			}
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "token: ")
				reader := bufio.NewReader(cmd.InOrStdin())
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("read token: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return fmt.Errorf("token must not be empty")
			}
			hash, err := crypto.HashAdminToken(password, p)
			if err != nil {
				return fmt.Errorf("hash token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&preset, "preset", crypto.PresetBitwarden.Name, "Argon2id tuning preset: bitwarden or owasp")
	cmd.Flags().StringVar(&password, "token", "", "token to hash (prompted on stdin if omitted)")
	return cmd
}
