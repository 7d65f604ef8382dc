package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xkilldash9x/tradewire/internal/bridge"
)

var (
	mioListID string
	tvListID  string
)

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Manage watch lists on both platforms at once.",
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add SYMBOL...",
	Short: "Add symbols to the configured watch lists on both platforms.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, closeStore, err := newBridge(cmd.Context(), mioListID, tvListID)
		if err != nil {
			return err
		}
		defer closeStore()

		var anyFailed bool
		for _, symbol := range args {
			out := b.AddSymbol(cmd.Context(), strings.ToUpper(symbol))
			printOutcome(out)
			if !out.OK {
				anyFailed = true
			}
		}
		if anyFailed {
			return fmt.Errorf("one or more symbols failed on both platforms")
		}
		return nil
	},
}

var watchlistRemoveCmd = &cobra.Command{
	Use:   "remove SYMBOL...",
	Short: "Remove symbols from the configured watch lists on both platforms.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, closeStore, err := newBridge(cmd.Context(), mioListID, tvListID)
		if err != nil {
			return err
		}
		defer closeStore()

		var anyFailed bool
		for _, symbol := range args {
			out := b.RemoveSymbol(cmd.Context(), strings.ToUpper(symbol))
			printOutcome(out)
			if !out.OK {
				anyFailed = true
			}
		}
		if anyFailed {
			return fmt.Errorf("one or more symbols failed on both platforms")
		}
		return nil
	},
}

var watchlistListsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Show the named watch lists on both platforms.",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, closeStore, err := newBridge(cmd.Context(), mioListID, tvListID)
		if err != nil {
			return err
		}
		defer closeStore()

		out := b.Watchlists(cmd.Context())
		for _, leg := range out.Legs {
			if !leg.OK {
				fmt.Printf("%s: %s\n", leg.Platform, leg.Error)
			}
		}
		for _, l := range out.MarketInOut {
			fmt.Printf("marketinout\t%s\t%s\n", l.ID, l.Name)
		}
		for _, l := range out.TradingView {
			fmt.Printf("tradingview\t%s\t%s\n", l.ID, l.Name)
		}
		if !out.OK {
			return fmt.Errorf("both platforms failed")
		}
		return nil
	},
}

func printOutcome(out bridge.Outcome) {
	fmt.Println(out.Message)
	for _, leg := range out.Legs {
		if leg.OK {
			continue
		}
		if leg.NeedsRefresh {
			fmt.Printf("  %s: %s - recapture the session with the browser extension\n", leg.Platform, leg.Error)
		} else {
			fmt.Printf("  %s: %s\n", leg.Platform, leg.Error)
		}
	}
}

func init() {
	watchlistCmd.PersistentFlags().StringVar(&mioListID, "mio-list", "", "MarketInOut watch list id")
	watchlistCmd.PersistentFlags().StringVar(&tvListID, "tv-list", "", "TradingView watch list id")
	watchlistCmd.AddCommand(watchlistAddCmd)
	watchlistCmd.AddCommand(watchlistRemoveCmd)
	watchlistCmd.AddCommand(watchlistListsCmd)
	rootCmd.AddCommand(watchlistCmd)
}
