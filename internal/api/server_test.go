package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/treasury-pool/treasury/internal/app/fees"
	"github.com/treasury-pool/treasury/internal/app/pool"
	"github.com/treasury-pool/treasury/internal/app/referral"
	"github.com/treasury-pool/treasury/internal/app/sweeper"
	"github.com/treasury-pool/treasury/internal/domain"
	"github.com/treasury-pool/treasury/internal/infra/catalog"
	"github.com/treasury-pool/treasury/internal/infra/observability"
	"github.com/treasury-pool/treasury/internal/infra/sqlite"
	"github.com/treasury-pool/treasury/internal/infra/token"
)

// ─── Test Setup ─────────────────────────────────────────────────────────────

type testAPI struct {
	t       *testing.T
	handler http.Handler
	server  *Server
	vault   *token.Vault
	ledger  *pool.Ledger
	sweeper *sweeper.Sweeper
	now     time.Time
}

func setupAPI(t *testing.T, faucet bool) *testAPI {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	log := zap.NewNop()
	tree := referral.New(referral.DefaultConfig(), db, log)
	if err := tree.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	router := fees.New(fees.DefaultConfig(), db, log)
	vault := token.NewVault("treasury-pool")
	tracer := observability.NewTracer(observability.DefaultTracerConfig())

	a := &testAPI{t: t, vault: vault, now: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
	a.ledger = pool.New(pool.DefaultConfig(), db, vault, catalog.Static{}, tree, router, tracer, log)
	a.ledger.SetClock(func() time.Time { return a.now })
	a.sweeper = sweeper.New(sweeper.DefaultConfig(), db, log)

	a.server = NewServer(a.ledger, tree, router, log)
	a.server.SetVault(vault, faucet)
	a.server.SetSweeper(a.sweeper)
	a.server.SetTracer(tracer)
	a.server.EnableMetrics()
	a.handler = a.server.Handler()
	return a
}

// do sends a request as account (no header when empty) and decodes the body.
func (a *testAPI) do(method, path, account string, body any) (int, map[string]interface{}) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if account != "" {
		req.Header.Set(CallerHeader, account)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			a.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return w.Code, resp
}

func errMessage(resp map[string]interface{}) string {
	e, _ := resp["error"].(map[string]interface{})
	msg, _ := e["message"].(string)
	return msg
}

// register creates account under the owner and funds it.
func (a *testAPI) register(account string, tokens int64) {
	a.t.Helper()
	code, resp := a.do(http.MethodPost, "/api/users", account, map[string]string{"sponsor": "owner"})
	if code != http.StatusCreated {
		a.t.Fatalf("register %s: %d %v", account, code, resp)
	}
	a.vault.Mint(account, domain.Tokens(tokens))
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestServer_Health(t *testing.T) {
	a := setupAPI(t, false)
	code, resp := a.do(http.MethodGet, "/health", "", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
}

func TestServer_Plans(t *testing.T) {
	a := setupAPI(t, false)
	code, resp := a.do(http.MethodGet, "/api/plans", "", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	plans, _ := resp["plans"].([]interface{})
	if len(plans) != len(catalog.Catalog) {
		t.Fatalf("plans = %d, want %d", len(plans), len(catalog.Catalog))
	}
	last := plans[len(plans)-1].(map[string]interface{})
	if last["total_days"] != float64(360) {
		t.Errorf("plan 5 total_days = %v, want 360", last["total_days"])
	}
}

func TestServer_CallerRequired(t *testing.T) {
	a := setupAPI(t, false)
	routes := []string{
		"/api/users",
		"/api/contributions",
		"/api/contributions/0/claim",
		"/api/contributions/0/cancel",
		"/api/earnings/withdraw",
		"/api/admin/manager",
	}
	for _, path := range routes {
		code, _ := a.do(http.MethodPost, path, "", map[string]string{})
		if code != http.StatusUnauthorized {
			t.Errorf("POST %s without caller = %d, want 401", path, code)
		}
	}
}

func TestServer_ContributeAndClaim(t *testing.T) {
	a := setupAPI(t, false)
	a.register("alice", 1000)

	code, resp := a.do(http.MethodPost, "/api/contributions", "alice",
		map[string]interface{}{"amount": "100", "plan_id": 1})
	if code != http.StatusCreated {
		t.Fatalf("contribute: %d %v", code, resp)
	}
	if resp["index"] != float64(0) {
		t.Errorf("index = %v, want 0", resp["index"])
	}

	_, resp = a.do(http.MethodGet, "/api/accounts/alice/value", "", nil)
	if resp["units"] != float64(domain.Tokens(100)) {
		t.Errorf("value = %v, want %d", resp["units"], domain.Tokens(100))
	}

	code, resp = a.do(http.MethodPost, "/api/contributions/0/claim", "alice", nil)
	if code != http.StatusConflict {
		t.Fatalf("early claim = %d, want 409", code)
	}
	if msg := errMessage(resp); msg != domain.ErrClaimTooEarly.Error() {
		t.Errorf("message = %q, want %q", msg, domain.ErrClaimTooEarly)
	}

	_, resp = a.do(http.MethodGet, "/api/accounts/alice/contributions/0/next-withdrawal", "", nil)
	if resp["seconds"] != float64(5*86400) {
		t.Errorf("next withdrawal = %v, want %d", resp["seconds"], 5*86400)
	}

	a.now = a.now.Add(5 * 24 * time.Hour)
	code, resp = a.do(http.MethodPost, "/api/contributions/0/claim", "alice", nil)
	if code != http.StatusOK {
		t.Fatalf("claim: %d %v", code, resp)
	}

	_, resp = a.do(http.MethodGet, "/api/accounts/alice/balance", "", nil)
	if resp["units"] != float64(domain.Tokens(1000)) {
		t.Errorf("balance = %v, want %d", resp["units"], domain.Tokens(1000))
	}
	_, resp = a.do(http.MethodGet, "/api/accounts/alice/contributions", "", nil)
	if list, _ := resp["contributions"].([]interface{}); len(list) != 0 {
		t.Errorf("active after final claim = %d, want 0", len(list))
	}
	_, resp = a.do(http.MethodGet, "/api/accounts/alice/history", "", nil)
	if list, _ := resp["entries"].([]interface{}); len(list) != 2 {
		t.Errorf("history entries = %d, want 2", len(list))
	}
}

func TestServer_NextWithdrawalSubSecondClock(t *testing.T) {
	a := setupAPI(t, false)
	a.register("alice", 1000)
	a.now = a.now.Add(250 * time.Millisecond)

	code, resp := a.do(http.MethodPost, "/api/contributions", "alice",
		map[string]interface{}{"amount": "100", "plan_id": 0})
	if code != http.StatusCreated {
		t.Fatalf("contribute: %d %v", code, resp)
	}

	a.now = a.now.Add(500 * time.Millisecond)
	_, resp = a.do(http.MethodGet, "/api/accounts/alice/contributions/0/next-withdrawal", "", nil)
	if resp["seconds"] != float64(86400) {
		t.Errorf("next withdrawal = %v, want 86400", resp["seconds"])
	}
	_, resp = a.do(http.MethodGet, "/api/accounts/alice/contributions/0", "", nil)
	if resp["seconds_until_next"] != float64(86400) {
		t.Errorf("seconds_until_next = %v, want 86400", resp["seconds_until_next"])
	}
	_, resp = a.do(http.MethodGet, "/api/accounts/alice/contributions/0/elapsed", "", nil)
	if resp["days"] != float64(0) {
		t.Errorf("days = %v, want 0", resp["days"])
	}
}

func TestServer_ErrorMapping(t *testing.T) {
	a := setupAPI(t, false)
	a.register("alice", 1000)

	tests := []struct {
		name    string
		method  string
		path    string
		account string
		body    any
		want    int
		message string
	}{
		{"amount too small", http.MethodPost, "/api/contributions", "alice",
			map[string]interface{}{"amount": "5", "plan_id": 1}, http.StatusBadRequest, domain.ErrInvalidAmount.Error()},
		{"amount too large", http.MethodPost, "/api/contributions", "alice",
			map[string]interface{}{"amount": "10000.000001", "plan_id": 1}, http.StatusBadRequest, domain.ErrInvalidAmount.Error()},
		{"unparseable amount", http.MethodPost, "/api/contributions", "alice",
			map[string]interface{}{"amount": "ten", "plan_id": 1}, http.StatusBadRequest, ""},
		{"unknown plan", http.MethodPost, "/api/contributions", "alice",
			map[string]interface{}{"amount": "10", "plan_id": 9}, http.StatusBadRequest, domain.ErrUnknownPlan.Error()},
		{"not registered", http.MethodPost, "/api/contributions", "mallory",
			map[string]interface{}{"amount": "10", "plan_id": 1}, http.StatusForbidden, domain.ErrNotRegistered.Error()},
		{"insufficient balance", http.MethodPost, "/api/contributions", "alice",
			map[string]interface{}{"amount": "5000", "plan_id": 1}, http.StatusBadGateway, ""},
		{"missing record", http.MethodPost, "/api/contributions/7/cancel", "alice",
			nil, http.StatusNotFound, domain.ErrContributionNotFound.Error()},
		{"bad index", http.MethodPost, "/api/contributions/x/claim", "alice",
			nil, http.StatusBadRequest, ""},
		{"duplicate registration", http.MethodPost, "/api/users", "alice",
			map[string]string{"sponsor": "owner"}, http.StatusConflict, domain.ErrAlreadyRegistered.Error()},
		{"nothing to withdraw", http.MethodPost, "/api/earnings/withdraw", "alice",
			nil, http.StatusConflict, domain.ErrNothingToWithdraw.Error()},
		{"unknown user", http.MethodGet, "/api/users/ghost", "",
			nil, http.StatusNotFound, domain.ErrNotRegistered.Error()},
		{"bad offset", http.MethodGet, "/api/accounts/alice/contributions?offset=-1", "",
			nil, http.StatusBadRequest, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, resp := a.do(tc.method, tc.path, tc.account, tc.body)
			if code != tc.want {
				t.Fatalf("status = %d, want %d (%v)", code, tc.want, resp)
			}
			if tc.message != "" && errMessage(resp) != tc.message {
				t.Errorf("message = %q, want %q", errMessage(resp), tc.message)
			}
		})
	}
}

func TestServer_CancelRefunds(t *testing.T) {
	a := setupAPI(t, false)
	a.register("alice", 100)

	a.do(http.MethodPost, "/api/contributions", "alice", map[string]interface{}{"amount": "10", "plan_id": 4})
	code, resp := a.do(http.MethodPost, "/api/contributions/0/cancel", "alice", nil)
	if code != http.StatusOK {
		t.Fatalf("cancel: %d %v", code, resp)
	}
	if resp["refund"] != float64(domain.Tokens(10)) {
		t.Errorf("refund = %v, want %d", resp["refund"], domain.Tokens(10))
	}

	code, resp = a.do(http.MethodPost, "/api/contributions/0/cancel", "alice", nil)
	if code != http.StatusConflict {
		t.Errorf("second cancel = %d, want 409", code)
	}
	if msg := errMessage(resp); msg != domain.ErrContributionFinished.Error() {
		t.Errorf("message = %q, want %q", msg, domain.ErrContributionFinished)
	}
}

func TestServer_OwnerWiring(t *testing.T) {
	a := setupAPI(t, false)
	a.register("alice", 0)

	code, _ := a.do(http.MethodPost, "/api/admin/manager", "alice", map[string]string{"address": "alice"})
	if code != http.StatusForbidden {
		t.Errorf("non-owner set manager = %d, want 403", code)
	}
	code, _ = a.do(http.MethodPost, "/api/admin/manager", "owner", map[string]string{"address": "boss"})
	if code != http.StatusOK {
		t.Errorf("owner set manager = %d, want 200", code)
	}
	_, resp := a.do(http.MethodGet, "/api/status", "", nil)
	if resp["manager"] != "boss" {
		t.Errorf("manager = %v, want boss", resp["manager"])
	}

	code, _ = a.do(http.MethodPost, "/api/tokens", "owner", map[string]string{"token_id": "usdc", "symbol": "USDC"})
	if code != http.StatusCreated {
		t.Errorf("add token = %d, want 201", code)
	}
	code, _ = a.do(http.MethodPost, "/api/tokens", "owner", map[string]string{"token_id": "usdc", "symbol": "USDC"})
	if code != http.StatusConflict {
		t.Errorf("duplicate token = %d, want 409", code)
	}
	_, resp = a.do(http.MethodGet, "/api/tokens", "", nil)
	if list, _ := resp["tokens"].([]interface{}); len(list) != 1 {
		t.Errorf("tokens = %d, want 1", len(list))
	}

	// direct-members is closed until a treasury pool is configured
	code, _ = a.do(http.MethodPost, "/api/admin/direct-members", "owner", map[string]string{"address": "alice"})
	if code != http.StatusForbidden {
		t.Errorf("direct-members before wiring = %d, want 403", code)
	}
	a.do(http.MethodPost, "/api/admin/treasury-pool", "owner", map[string]string{"address": "owner"})
	code, _ = a.do(http.MethodPost, "/api/admin/direct-members", "owner", map[string]string{"address": "alice"})
	if code != http.StatusOK {
		t.Errorf("direct-members after wiring = %d, want 200", code)
	}
	_, resp = a.do(http.MethodGet, "/api/users/alice", "", nil)
	if resp["direct_count"] != float64(1) {
		t.Errorf("direct_count = %v, want 1", resp["direct_count"])
	}
}

func TestServer_Upline(t *testing.T) {
	a := setupAPI(t, false)
	a.register("alice", 0)
	a.do(http.MethodPost, "/api/users", "bob", map[string]string{"sponsor": "alice"})

	code, resp := a.do(http.MethodGet, "/api/users/bob/upline", "", nil)
	if code != http.StatusOK {
		t.Fatalf("upline: %d", code)
	}
	up, _ := resp["upline"].([]interface{})
	if len(up) != 2 {
		t.Fatalf("upline = %d, want 2", len(up))
	}
	first := up[0].(map[string]interface{})
	if first["account"] != "alice" || first["level"] != float64(1) {
		t.Errorf("level 1 = %v, want alice", first)
	}

	_, resp = a.do(http.MethodGet, "/api/users/alice/referrals", "", nil)
	if list, _ := resp["referrals"].([]interface{}); len(list) != 1 {
		t.Errorf("referrals = %d, want 1", len(list))
	}
}

func TestServer_Mint(t *testing.T) {
	t.Run("faucet off", func(t *testing.T) {
		a := setupAPI(t, false)
		code, _ := a.do(http.MethodPost, "/api/admin/mint", "owner", map[string]string{"account": "x", "amount": "5"})
		if code != http.StatusNotFound {
			t.Errorf("mint = %d, want 404", code)
		}
	})
	t.Run("faucet on", func(t *testing.T) {
		a := setupAPI(t, true)
		code, _ := a.do(http.MethodPost, "/api/admin/mint", "alice", map[string]string{"account": "x", "amount": "5"})
		if code != http.StatusForbidden {
			t.Errorf("non-owner mint = %d, want 403", code)
		}
		code, resp := a.do(http.MethodPost, "/api/admin/mint", "owner", map[string]string{"account": "x", "amount": "5.5"})
		if code != http.StatusOK {
			t.Fatalf("mint = %d %v", code, resp)
		}
		bal := resp["balance"].(map[string]interface{})
		if bal["amount"] != "5.500000" {
			t.Errorf("balance = %v, want 5.500000", bal["amount"])
		}
	})
}

func TestServer_UnlocksAndSpans(t *testing.T) {
	a := setupAPI(t, false)
	a.register("alice", 100)
	a.do(http.MethodPost, "/api/contributions", "alice", map[string]interface{}{"amount": "20", "plan_id": 2})

	if _, err := a.sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	code, resp := a.do(http.MethodGet, "/api/unlocks?limit=5", "", nil)
	if code != http.StatusOK {
		t.Fatalf("unlocks: %d", code)
	}
	if list, _ := resp["unlocks"].([]interface{}); len(list) != 1 {
		t.Errorf("unlocks = %d, want 1", len(list))
	}

	_, resp = a.do(http.MethodGet, "/api/spans", "", nil)
	if resp["total"] != float64(1) {
		t.Errorf("spans = %v, want 1", resp["total"])
	}
}

func TestServer_Metrics(t *testing.T) {
	a := setupAPI(t, false)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
