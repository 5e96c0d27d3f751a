package cli

import (
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/treasury-pool/treasury/internal/domain"
)

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountRegisterCmd)
	accountCmd.AddCommand(accountUplineCmd)
	accountCmd.AddCommand(accountEarningsCmd)
	accountCmd.AddCommand(accountWithdrawCmd)
	accountCmd.AddCommand(accountBalanceCmd)

	accountRegisterCmd.Flags().StringP("sponsor", "s", "", "Sponsor account (unknown or empty starts a new tree)")
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Register and inspect referral accounts",
}

var accountRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register --as under a sponsor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAs(); err != nil {
			return err
		}
		sponsor, _ := cmd.Flags().GetString("sponsor")
		var node domain.ReferralNode
		if err := call(cmd.Context(), http.MethodPost, "/api/users", map[string]string{"sponsor": sponsor}, &node); err != nil {
			return err
		}
		if node.IsRoot() {
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s registered as a tree root\n", node.Account)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s registered under %s\n", node.Account, node.Sponsor)
		}
		return nil
	},
}

var accountUplineCmd = &cobra.Command{
	Use:   "upline [ACCOUNT]",
	Short: "List the sponsors above an account, nearest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := accountArg(args)
		if err != nil {
			return err
		}
		var resp struct {
			Upline []domain.Ancestor `json:"upline"`
		}
		if err := call(cmd.Context(), http.MethodGet, "/api/users/"+acct+"/upline", nil, &resp); err != nil {
			return err
		}
		if len(resp.Upline) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s has no sponsor.\n", acct)
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LEVEL\tACCOUNT\tDIRECT\tQUALIFIES")
		for _, a := range resp.Upline {
			fmt.Fprintf(w, "%d\t%s\t%d\t%v\n", a.Level, a.Account, a.DirectCount, a.QualifiesForLevel(a.Level))
		}
		return w.Flush()
	},
}

var accountEarningsCmd = &cobra.Command{
	Use:   "earnings [ACCOUNT]",
	Short: "Show referral earnings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := accountArg(args)
		if err != nil {
			return err
		}
		var resp struct {
			Balance amount `json:"balance"`
			Total   amount `json:"total"`
		}
		if err := call(cmd.Context(), http.MethodGet, "/api/accounts/"+acct+"/earnings", nil, &resp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Withdrawable: %s\nLifetime:     %s\n", resp.Balance.Amount, resp.Total.Amount)
		return nil
	},
}

var accountWithdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Pay out --as's referral earnings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAs(); err != nil {
			return err
		}
		var resp struct {
			Withdrawn amount `json:"withdrawn"`
		}
		if err := call(cmd.Context(), http.MethodPost, "/api/earnings/withdraw", nil, &resp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Withdrew %s tokens\n", resp.Withdrawn.Amount)
		return nil
	},
}

var accountBalanceCmd = &cobra.Command{
	Use:   "balance [ACCOUNT]",
	Short: "Show the wallet balance and value held in the pool",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := accountArg(args)
		if err != nil {
			return err
		}
		var wallet, pooled amount
		if err := call(cmd.Context(), http.MethodGet, "/api/accounts/"+acct+"/balance", nil, &wallet); err != nil {
			return err
		}
		if err := call(cmd.Context(), http.MethodGet, "/api/accounts/"+acct+"/value", nil, &pooled); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wallet:  %s\nIn pool: %s\n", wallet.Amount, pooled.Amount)
		return nil
	},
}
