package cmd

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/xkilldash9x/tradewire/api/schemas"
	"github.com/xkilldash9x/tradewire/internal/observability"
	"github.com/xkilldash9x/tradewire/internal/platform/tradingview"
	"github.com/xkilldash9x/tradewire/internal/session"
)

var (
	tokenRaw     string
	tokenChartID string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Work with TradingView chart tokens.",
}

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Fetch a chart token and print its unverified claims.",
	Long: `Fetches a chart token using the latest captured TradingView session
(or takes one via --token) and prints its claims. The signature is not
verified; this is a debugging aid, not a validation step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := tokenRaw
		if raw == "" {
			store, closeStore, err := newStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			cache := session.NewCache(store, cfg.Cache.TTL, observability.GetLogger())
			sess, err := cache.Get(cmd.Context(), schemas.PlatformTradingView)
			if err != nil {
				return err
			}
			creds, err := session.ExtractTradingViewCredentials(sess.Fields)
			if err != nil {
				return err
			}

			client := tradingview.New(cfg.Platforms.TradingView.BaseURL, creds, httpConfig(), nil)
			userID, err := client.UserID(cmd.Context())
			if err != nil {
				return err
			}
			raw, err = client.JWTToken(cmd.Context(), userID, tokenChartID)
			if err != nil {
				return err
			}
		}

		token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
		if err != nil {
			return fmt.Errorf("failed to decode token: %w", err)
		}

		fmt.Printf("algorithm: %v\n", token.Header["alg"])
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fmt.Errorf("unexpected claims shape")
		}
		for k, v := range claims {
			fmt.Printf("%s: %v\n", k, v)
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			fmt.Printf("expires in: %s\n", time.Until(exp.Time).Round(time.Second))
		}
		return nil
	},
}

func init() {
	tokenInspectCmd.Flags().StringVar(&tokenRaw, "token", "", "inspect this token instead of fetching one")
	tokenInspectCmd.Flags().StringVar(&tokenChartID, "chart", "", "chart id to request a token for")
	tokenCmd.AddCommand(tokenInspectCmd)
	rootCmd.AddCommand(tokenCmd)
}
