// Package cli holds the treasury command tree. The serve command runs the
// daemon; every other command is a thin client of its HTTP API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/treasury-pool/treasury/internal/daemon"
)

var (
	flagHome string // data directory, defaults to daemon.Home()
	flagAddr string // API base URL for client commands
	flagAs   string // account sent as the caller
)

var rootCmd = &cobra.Command{
	Use:   "treasury",
	Short: "Time-locked contribution pool with unilevel referral fees",
	Long: `treasury runs a contribution pool: accounts deposit into fixed or
cyclic lock plans, claim matured tranches, and cancel early for a refund.
Claims may carry a fee that is split across a 20-level referral upline.

Start the service with 'treasury serve'; the other commands talk to it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagHome, "home", "", "data directory (default $TREASURY_HOME or ~/.treasury)")
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "", "API address (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagAs, "as", os.Getenv(daemon.EnvPrefix+"ACCOUNT"), "account to act as")
}

// Execute runs the command tree.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func homeDir() string {
	if flagHome != "" {
		return flagHome
	}
	return daemon.Home()
}

// apiBase resolves the API URL from --addr or the config file.
func apiBase() (string, error) {
	if flagAddr != "" {
		return flagAddr, nil
	}
	cfg, err := daemon.LoadConfig(homeDir())
	if err != nil {
		return "", err
	}
	return "http://" + cfg.Addr(), nil
}
