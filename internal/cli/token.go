package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "profilereg/internal/jwt_token"
	"profilereg/internal/platform/config"
	id "profilereg/pkg/domain"
)

func tokenCmd() *cobra.Command {
	var (
		cosign bool
		ttl    time.Duration
	)

	c := &cobra.Command{
		Use:   "token PRINCIPAL",
		Short: "Mint a signed principal token for local use",
		Long: "Mint a bearer token (or, with --cosign, a cosign token) signed with the\n" +
			"server's configured key. Intended for development and operations only.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			p, err := id.ParsePrincipal(args[0])
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Server.TokenTTL
			}
			purpose := jwttoken.PurposeBearer
			if cosign {
				purpose = jwttoken.PurposeCosign
			}

			svc := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
			tok, err := svc.GenerateToken(p, purpose, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	c.Flags().BoolVar(&cosign, "cosign", false, "mint a cosign token instead of a bearer token")
	c.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to server.token_ttl)")
	return c
}
