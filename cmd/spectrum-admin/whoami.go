package main

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kyptronix/spectrum-admin/auth"
)

type whoami struct {
	Principal string    `json:"principal"`
	Email     string    `json:"email,omitempty"`
	Roles     []string  `json:"roles"`
	Admin     bool      `json:"admin"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account behind the configured token or login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if a.tokens == nil {
				return errors.New("whoami needs auth.token or auth.email and auth.password")
			}
			tok, err := a.tokens.Token()
			if err != nil {
				return err
			}
			id, err := auth.AdminIdentity(tok.AccessToken, time.Now())
			if id == nil {
				return err
			}
			if errors.Is(err, auth.ErrTokenExpired) {
				return err
			}

			out := whoami{
				Principal: id.Principal,
				Email:     id.Email,
				Roles:     id.Roles,
				Admin:     id.IsAdmin(),
				ExpiresAt: id.ExpiresAt,
			}
			return a.out.print(out, []string{"PRINCIPAL", "EMAIL", "ROLES", "ADMIN", "EXPIRES"}, func() [][]string {
				expires := "-"
				if !out.ExpiresAt.IsZero() {
					expires = out.ExpiresAt.Format(time.RFC3339)
				}
				return [][]string{{
					orDash(out.Principal),
					orDash(out.Email),
					orDash(strings.Join(out.Roles, ",")),
					strconv.FormatBool(out.Admin),
					expires,
				}}
			})
		},
	}
}
