package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwise1/sosedi/internal/auth"
	"github.com/spf13/cobra"
)

// tokenCmd issues development tokens signed with JWT_SECRET.
var tokenCmd = &cobra.Command{
	Use:   "token <uid>",
	Short: "Issue a bearer token for a user id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JwtSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		phone, _ := cmd.Flags().GetString("phone")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		tok, err := auth.NewJWTVerifier(cfg.JwtSecret).Issue(auth.Identity{UID: args[0], Phone: phone}, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("phone", "", "phone number claim")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
}
