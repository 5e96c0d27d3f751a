package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/treasury-pool/treasury/internal/api"
	"github.com/treasury-pool/treasury/internal/app/fees"
	"github.com/treasury-pool/treasury/internal/app/pool"
	"github.com/treasury-pool/treasury/internal/app/referral"
	"github.com/treasury-pool/treasury/internal/app/sweeper"
	"github.com/treasury-pool/treasury/internal/infra/catalog"
	"github.com/treasury-pool/treasury/internal/infra/observability"
	"github.com/treasury-pool/treasury/internal/infra/sqlite"
	"github.com/treasury-pool/treasury/internal/infra/token"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Daemon holds every wired service of one treasury process.
type Daemon struct {
	Config  Config
	Log     *zap.Logger
	DB      *sqlite.DB
	Vault   *token.Vault
	Tracer  *observability.Tracer
	Tree    *referral.Tree
	Router  *fees.Router
	Ledger  *pool.Ledger
	Sweeper *sweeper.Sweeper
	Server  *api.Server
}

// New opens the database in home and wires the services.
func New(ctx context.Context, home string, cfg Config, log *zap.Logger) (*Daemon, error) {
	db, err := sqlite.Open(home)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		Config: cfg,
		Log:    log,
		DB:     db,
		Vault:  token.NewVault(cfg.Vault.PoolAccount),
		Tracer: observability.NewTracer(cfg.Trace),
	}
	d.Tree = referral.New(cfg.ReferralConfig(), db, log)
	d.Router = fees.New(cfg.FeesConfig(), db, log)

	if err := d.Tree.Bootstrap(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.Router.Load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.reconcileVault(ctx); err != nil {
		db.Close()
		return nil, err
	}

	d.Ledger = pool.New(cfg.PoolConfig(), db, d.Vault, catalog.Static{}, d.Tree, d.Router, d.Tracer, log)
	d.Sweeper = sweeper.New(cfg.SweeperConfig(), db, log)

	d.Server = api.NewServer(d.Ledger, d.Tree, d.Router, log)
	d.Server.SetVault(d.Vault, cfg.Vault.Faucet)
	d.Server.SetSweeper(d.Sweeper)
	d.Server.SetTracer(d.Tracer)
	if timeout, err := cfg.RequestTimeout(); err == nil {
		d.Server.SetTimeout(timeout)
	}
	if cfg.API.Metrics {
		d.Server.EnableMetrics()
	}
	return d, nil
}

// reconcileVault funds the in-process pool account with what the ledger
// owes: unclaimed principal plus undrawn earnings. Vault balances are not
// persisted, so this runs on every start.
func (d *Daemon) reconcileVault(ctx context.Context) error {
	tvl, err := d.DB.TotalValueLocked(ctx)
	if err != nil {
		return fmt.Errorf("reconcile vault: %w", err)
	}
	owed, err := d.DB.TotalEarningsOutstanding(ctx)
	if err != nil {
		return fmt.Errorf("reconcile vault: %w", err)
	}
	if total := tvl + owed; total > 0 {
		d.Vault.Mint(d.Vault.PoolAccount(), total)
		d.Log.Info("pool account funded from ledger",
			observability.Units("value_locked", tvl),
			observability.Units("earnings_outstanding", owed),
		)
	}
	return nil
}

// Run serves HTTP and the sweeper until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Sweeper.Start(ctx); err != nil {
		return err
	}
	defer d.Sweeper.Stop()

	srv := &http.Server{
		Addr:              d.Config.Addr(),
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.Log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	d.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}

// Close releases the database.
func (d *Daemon) Close() error {
	return d.DB.Close()
}
