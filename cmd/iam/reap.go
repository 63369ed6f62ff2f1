package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/iam/internal/reaper"
)

func newReapCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Borra una vez los registros expirados (requests, codes, refresh tokens, resets)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := waitCtx(cmd.Context())
			defer stop()

			st, err := openMigrated(ctx, g.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := reaper.New(st, reaper.Config{AuthRequestTTL: g.cfg.Auth.AuthRequestTTL}, nil).Sweep(ctx)
			fmt.Printf("authorization_requests=%d authorization_codes=%d refresh_tokens=%d password_resets=%d\n",
				res.AuthorizationRequests, res.AuthorizationCodes, res.RefreshTokens, res.PasswordResets)
			return err
		},
	}
}
