package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/treasury-pool/treasury/internal/domain"
)

// ─── Admin Commands ─────────────────────────────────────────────────────────
// Owner-only wiring. The service checks --as against the configured owner.

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminManagerCmd)
	adminCmd.AddCommand(adminTreasuryPoolCmd)
	adminCmd.AddCommand(adminAddTokenCmd)
	adminCmd.AddCommand(adminDirectMemberCmd)
	adminCmd.AddCommand(adminMintCmd)

	adminAddTokenCmd.Flags().String("symbol", "", "Display symbol")
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Owner-only configuration",
}

var adminManagerCmd = &cobra.Command{
	Use:   "set-manager ADDRESS",
	Short: "Set the account that absorbs unpaid fee shares and penalties",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return postAddress(cmd, "/api/admin/manager", args[0], "Manager set to %s\n")
	},
}

var adminTreasuryPoolCmd = &cobra.Command{
	Use:   "set-treasury-pool ADDRESS",
	Short: "Set the account allowed to add direct members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return postAddress(cmd, "/api/admin/treasury-pool", args[0], "Treasury pool set to %s\n")
	},
}

var adminDirectMemberCmd = &cobra.Command{
	Use:   "add-direct-member ACCOUNT",
	Short: "Bump ACCOUNT's direct counter (treasury pool caller only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return postAddress(cmd, "/api/admin/direct-members", args[0], "Direct member added to %s\n")
	},
}

var adminAddTokenCmd = &cobra.Command{
	Use:   "add-token TOKEN_ID",
	Short: "Register a fee-bearing token at the default rate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAs(); err != nil {
			return err
		}
		symbol, _ := cmd.Flags().GetString("symbol")
		var tok domain.FeeToken
		body := map[string]string{"token_id": args[0], "symbol": symbol}
		if err := call(cmd.Context(), http.MethodPost, "/api/tokens", body, &tok); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Token %s added at %d bps\n", tok.TokenID, tok.FeeBps)
		return nil
	},
}

var adminMintCmd = &cobra.Command{
	Use:   "mint ACCOUNT AMOUNT",
	Short: "Credit test tokens (requires vault.faucet)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAs(); err != nil {
			return err
		}
		var resp struct {
			Balance amount `json:"balance"`
		}
		body := map[string]string{"account": args[0], "amount": args[1]}
		if err := call(cmd.Context(), http.MethodPost, "/api/admin/mint", body, &resp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s balance: %s\n", args[0], resp.Balance.Amount)
		return nil
	},
}

func postAddress(cmd *cobra.Command, path, addr, format string) error {
	if err := requireAs(); err != nil {
		return err
	}
	if err := call(cmd.Context(), http.MethodPost, path, map[string]string{"address": addr}, nil); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ "+format, addr)
	return nil
}
