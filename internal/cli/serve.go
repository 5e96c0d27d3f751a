package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/treasury-pool/treasury/internal/daemon"
	"github.com/treasury-pool/treasury/internal/infra/observability"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}

// ─── serve ──────────────────────────────────────────────────────────────────

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the treasury service",
	Long: `Start the HTTP API and the periodic sweeper. Configuration is read from
$TREASURY_HOME/config.toml, then .env files, then TREASURY_* variables.
Stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	home := homeDir()
	cfg, err := daemon.LoadConfig(home)
	if err != nil {
		return err
	}
	log, err := observability.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(ctx, home, cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()

	log.Info("treasury starting",
		zap.String("home", home),
		zap.String("owner", cfg.Owner),
		zap.String("pool_account", cfg.Vault.PoolAccount),
		zap.Bool("faucet", cfg.Vault.Faucet),
	)
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ─── init ───────────────────────────────────────────────────────────────────

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path := filepath.Join(homeDir(), daemon.ConfigFile)

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := daemon.SaveConfig(path, daemon.DefaultConfig()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Config written to %s\n", path)
	return nil
}
