package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apievents "github.com/kilianp07/vtn/api/events"
	"github.com/kilianp07/vtn/config"
)

var (
	tokenSubject string
	tokenRoles   []string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign an admin API JWT with the configured http.jwt_secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		tok, err := apievents.GenerateToken(cfg.HTTP.JWTSecret, cfg.HTTP.JWTIssuer, tokenSubject, tokenRoles, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenSubject, "subject", "operator", "token subject")
	f.StringSliceVar(&tokenRoles, "role", nil, "roles carried by the token")
	f.DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
