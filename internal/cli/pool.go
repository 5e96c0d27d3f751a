package cli

import (
	"fmt"
	"net/http"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/treasury-pool/treasury/internal/domain"
)

// ─── Contribution Commands ──────────────────────────────────────────────────
// Client side of the pool: every command is one API call made as --as.

func init() {
	rootCmd.AddCommand(contributionCmd)
	contributionCmd.AddCommand(contributionAddCmd)
	contributionCmd.AddCommand(contributionClaimCmd)
	contributionCmd.AddCommand(contributionCancelCmd)
	contributionCmd.AddCommand(contributionListCmd)
	contributionCmd.AddCommand(contributionShowCmd)

	contributionAddCmd.Flags().IntP("plan", "p", 0, "Plan ID (see 'treasury plans')")
	contributionListCmd.Flags().Int("offset", 0, "First record index of the page")
	contributionListCmd.Flags().Bool("all", false, "Include finished records")
	contributionShowCmd.Flags().String("account", "", "Owner of the record (default --as)")
}

var contributionCmd = &cobra.Command{
	Use:     "contribution",
	Aliases: []string{"c"},
	Short:   "Deposit, claim and cancel contributions",
	Long: `Manage your contributions. Each deposit locks 10 to 10,000 tokens into
a plan. Fixed plans pay out once at maturity; cyclic plans pay a tranche
every 30 days. Cancelling refunds whatever has not been paid out yet.`,
}

// ─── contribution add ───────────────────────────────────────────────────────

var contributionAddCmd = &cobra.Command{
	Use:   "add AMOUNT",
	Short: "Deposit AMOUNT tokens into a plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runContributionAdd,
}

func runContributionAdd(cmd *cobra.Command, args []string) error {
	if err := requireAs(); err != nil {
		return err
	}
	plan, _ := cmd.Flags().GetInt("plan")
	if _, err := domain.ParseUnits(args[0]); err != nil {
		return err
	}

	var c domain.Contribution
	body := map[string]interface{}{"amount": args[0], "plan_id": plan}
	if err := call(cmd.Context(), http.MethodPost, "/api/contributions", body, &c); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Contribution #%d: %s tokens in plan %d (%d days)\n",
		c.Index, domain.FormatUnits(c.Amount), c.PlanID, c.TotalDays)
	return nil
}

// ─── contribution claim ─────────────────────────────────────────────────────

var contributionClaimCmd = &cobra.Command{
	Use:   "claim INDEX",
	Short: "Claim the matured part of a contribution",
	Args:  cobra.ExactArgs(1),
	RunE:  runContributionClaim,
}

func runContributionClaim(cmd *cobra.Command, args []string) error {
	if err := requireAs(); err != nil {
		return err
	}
	idx, err := parseIndex(args[0])
	if err != nil {
		return err
	}

	var res struct {
		Contribution domain.Contribution `json:"contribution"`
		Split        domain.FeeSplit     `json:"split"`
	}
	if err := call(cmd.Context(), http.MethodPost, fmt.Sprintf("/api/contributions/%d/claim", idx), nil, &res); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✅ Claimed %s tokens from #%d\n", domain.FormatUnits(res.Split.Net), idx)
	if res.Split.Fee > 0 {
		fmt.Fprintf(out, "   Fee: %s (shared across %d accounts)\n", domain.FormatUnits(res.Split.Fee), len(res.Split.Shares))
	}
	if !res.Contribution.Active {
		fmt.Fprintln(out, "   Contribution fully paid out.")
	}
	return nil
}

// ─── contribution cancel ────────────────────────────────────────────────────

var contributionCancelCmd = &cobra.Command{
	Use:   "cancel INDEX",
	Short: "Cancel a contribution and refund the unpaid remainder",
	Args:  cobra.ExactArgs(1),
	RunE:  runContributionCancel,
}

func runContributionCancel(cmd *cobra.Command, args []string) error {
	if err := requireAs(); err != nil {
		return err
	}
	idx, err := parseIndex(args[0])
	if err != nil {
		return err
	}

	var res struct {
		Refund  int64 `json:"refund"`
		Penalty int64 `json:"penalty"`
	}
	if err := call(cmd.Context(), http.MethodPost, fmt.Sprintf("/api/contributions/%d/cancel", idx), nil, &res); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Contribution #%d cancelled, refunded %s tokens\n", idx, domain.FormatUnits(res.Refund))
	if res.Penalty > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "   Penalty kept: %s\n", domain.FormatUnits(res.Penalty))
	}
	return nil
}

// ─── contribution list ──────────────────────────────────────────────────────

var contributionListCmd = &cobra.Command{
	Use:   "list [ACCOUNT]",
	Short: "List active contributions, one page at a time",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runContributionList,
}

func runContributionList(cmd *cobra.Command, args []string) error {
	acct, err := accountArg(args)
	if err != nil {
		return err
	}
	offset, _ := cmd.Flags().GetInt("offset")
	all, _ := cmd.Flags().GetBool("all")

	path := fmt.Sprintf("/api/accounts/%s/contributions?offset=%d", acct, offset)
	if all {
		path = fmt.Sprintf("/api/accounts/%s/contributions/all", acct)
	}
	var page struct {
		Contributions []domain.Contribution `json:"contributions"`
		NextOffset    *int                  `json:"next_offset"`
	}
	if err := call(cmd.Context(), http.MethodGet, path, nil, &page); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(page.Contributions) == 0 {
		fmt.Fprintln(out, "No contributions.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPLAN\tAMOUNT\tCLAIMED\tSTARTED\tSTATE")
	for _, c := range page.Contributions {
		state := "active"
		if !c.Active {
			state = "closed"
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%d/%d days\t%s\t%s\n",
			c.Index, c.PlanID, domain.FormatUnits(c.Amount), c.ClaimedDays, c.TotalDays,
			c.StartedAt.Format(time.DateOnly), state)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if page.NextOffset != nil {
		fmt.Fprintf(out, "More: treasury contribution list %s --offset %d\n", acct, *page.NextOffset)
	}
	return nil
}

// ─── contribution show ──────────────────────────────────────────────────────

var contributionShowCmd = &cobra.Command{
	Use:   "show INDEX",
	Short: "Show one contribution with its claimable amount",
	Args:  cobra.ExactArgs(1),
	RunE:  runContributionShow,
}

func runContributionShow(cmd *cobra.Command, args []string) error {
	acct, _ := cmd.Flags().GetString("account")
	if acct == "" {
		if err := requireAs(); err != nil {
			return err
		}
		acct = flagAs
	}
	idx, err := parseIndex(args[0])
	if err != nil {
		return err
	}

	var v struct {
		domain.Contribution
		ElapsedDays      int   `json:"elapsed_days"`
		DaysToClaim      int   `json:"days_to_claim"`
		PaidOut          int64 `json:"paid_out"`
		Claimable        int64 `json:"claimable"`
		SecondsUntilNext int64 `json:"seconds_until_next"`
	}
	if err := call(cmd.Context(), http.MethodGet, fmt.Sprintf("/api/accounts/%s/contributions/%d", acct, idx), nil, &v); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Contribution #%d of %s\n", v.Index, v.Account)
	fmt.Fprintf(out, "  Plan:       %d (%d days)\n", v.PlanID, v.TotalDays)
	fmt.Fprintf(out, "  Amount:     %s\n", domain.FormatUnits(v.Amount))
	fmt.Fprintf(out, "  Elapsed:    %d days (%d unclaimed)\n", v.ElapsedDays, v.DaysToClaim)
	fmt.Fprintf(out, "  Paid out:   %s\n", domain.FormatUnits(v.PaidOut))
	fmt.Fprintf(out, "  Claimable:  %s\n", domain.FormatUnits(v.Claimable))
	if v.Active && v.SecondsUntilNext > 0 {
		fmt.Fprintf(out, "  Next claim: in %s\n", time.Duration(v.SecondsUntilNext)*time.Second)
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func parseIndex(s string) (int, error) {
	idx, err := strconv.Atoi(s)
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return idx, nil
}
