package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/xkilldash9x/tradewire/api/schemas"
	"github.com/xkilldash9x/tradewire/internal/session"
)

var (
	sessionPlatform string
	sessionEmail    string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and ingest captured sessions.",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the latest captured session and its extracted credentials.",
	RunE: func(cmd *cobra.Command, args []string) error {
		platform := schemas.Platform(sessionPlatform)
		if !platform.Valid() {
			return fmt.Errorf("unknown platform %q", sessionPlatform)
		}

		store, closeStore, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		var sess *schemas.Session
		if sessionEmail != "" {
			sess, err = store.LatestForUser(cmd.Context(), platform, sessionEmail)
		} else {
			sess, err = store.Latest(cmd.Context(), platform)
		}
		if err != nil {
			return err
		}

		fmt.Printf("session %s captured %s\n", sess.ID, sess.CapturedAt.Format("2006-01-02 15:04:05 MST"))
		switch platform {
		case schemas.PlatformMarketInOut:
			cookie, err := session.ExtractMarketInOutCookie(sess.Fields)
			if err != nil {
				return err
			}
			fmt.Printf("cookie: %s=%s\n", cookie.Key, mask(cookie.Value))
		case schemas.PlatformTradingView:
			creds, err := session.ExtractTradingViewCredentials(sess.Fields)
			if err != nil {
				return err
			}
			fmt.Printf("sessionid: %s\n", mask(creds.SessionID))
			if creds.SessionIDSign != "" {
				fmt.Printf("sessionid_sign: %s\n", mask(creds.SessionIDSign))
			}
			if creds.UserID != 0 {
				fmt.Printf("user id: %d\n", creds.UserID)
			}
		}
		return nil
	},
}

var sessionImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Ingest a capture file produced by the browser extension.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform := schemas.Platform(sessionPlatform)
		if !platform.Valid() {
			return fmt.Errorf("unknown platform %q", sessionPlatform)
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read capture file: %w", err)
		}
		var fields map[string]string
		if err := jsoniter.Unmarshal(data, &fields); err != nil {
			return fmt.Errorf("capture file is not a flat JSON object: %w", err)
		}

		store, closeStore, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		sess := &schemas.Session{
			Platform:  platform,
			UserEmail: sessionEmail,
			Fields:    fields,
		}
		if err := store.Save(cmd.Context(), sess); err != nil {
			return err
		}
		fmt.Printf("stored session %s for %s\n", sess.ID, platform)
		return nil
	},
}

// mask hides the middle of a credential so it can be shown safely.
func mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func init() {
	sessionCmd.PersistentFlags().StringVarP(&sessionPlatform, "platform", "p", "marketinout", "platform (marketinout or tradingview)")
	sessionCmd.PersistentFlags().StringVar(&sessionEmail, "user-email", "", "scope to a specific account")
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionImportCmd)
	rootCmd.AddCommand(sessionCmd)
}
