package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/treasury-pool/treasury/internal/api"
	"github.com/treasury-pool/treasury/internal/infra/catalog"
)

func init() {
	rootCmd.AddCommand(plansCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List the lock plans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tLOCK\tCLAIMS")
		for _, p := range (catalog.Static{}).Plans() {
			claims := "once at maturity"
			if p.MaxCycles > 0 {
				claims = fmt.Sprintf("every %d days, %d times", p.CycleDays, p.MaxCycles)
			}
			fmt.Fprintf(w, "%d\t%s\t%d days\t%s\n", p.ID, p.Kind, p.TotalDays(), claims)
		}
		return w.Flush()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pool status from the running service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var st struct {
			Version    string `json:"version"`
			Owner      string `json:"owner"`
			Manager    string `json:"manager"`
			TVL        amount `json:"total_value_locked"`
			Registered int    `json:"registered"`
			Tokens     int    `json:"tokens"`
		}
		if err := call(cmd.Context(), "GET", "/api/status", nil, &st); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Treasury %s\n", st.Version)
		fmt.Fprintf(out, "  Owner:         %s\n", st.Owner)
		fmt.Fprintf(out, "  Manager:       %s\n", st.Manager)
		fmt.Fprintf(out, "  Value locked:  %s\n", st.TVL.Amount)
		fmt.Fprintf(out, "  Accounts:      %d\n", st.Registered)
		fmt.Fprintf(out, "  Fee tokens:    %d\n", st.Tokens)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "treasury %s\n", api.Version)
	},
}
