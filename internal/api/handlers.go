package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/treasury-pool/treasury/internal/domain"
)

// ─── Pool Routes ────────────────────────────────────────────────────────────
//
// GET  /api/status                                   pool summary
// GET  /api/plans                                    plan catalog
// GET  /api/tvl                                      total value locked
// POST /api/contributions                            contribute {amount, plan_id}
// POST /api/contributions/{index}/claim              claim a matured tranche
// POST /api/contributions/{index}/cancel             cancel and refund
// POST /api/earnings/withdraw                        pay out referral earnings
// GET  /api/accounts/{account}/contributions?offset= active page
// GET  /api/accounts/{account}/contributions/{index} record with derived figures

// handleStatus returns a pool-wide summary.
// GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tvl, err := s.ledger.TotalValueLocked(ctx)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	size, err := s.tree.Size(ctx)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	manager, err := s.tree.Manager(ctx)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := map[string]interface{}{
		"status":             "running",
		"version":            Version,
		"owner":              s.tree.Owner(),
		"manager":            manager,
		"total_value_locked": units(tvl),
		"registered":         size,
		"tokens":             len(s.router.Tokens()),
	}
	if s.sweeper != nil {
		resp["last_sweep"] = s.sweeper.Last()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePlans lists the plan catalog.
// GET /api/plans
func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	plans := s.ledger.Plans()
	out := make([]map[string]interface{}, 0, len(plans))
	for _, p := range plans {
		out = append(out, map[string]interface{}{
			"id":            p.ID,
			"name":          p.Name,
			"kind":          p.Kind,
			"min_lock_days": p.MinLockDays,
			"cycle_days":    p.CycleDays,
			"max_cycles":    p.MaxCycles,
			"total_days":    p.TotalDays(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": out})
}

// GET /api/tvl
func (s *Server) handleTotalValueLocked(w http.ResponseWriter, r *http.Request) {
	tvl, err := s.ledger.TotalValueLocked(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, units(tvl))
}

type contributeRequest struct {
	Amount string `json:"amount"` // whole tokens, up to six decimals
	PlanID int    `json:"plan_id"`
}

// handleContribute deposits into a plan for the caller.
// POST /api/contributions
func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req contributeRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := domain.ParseUnits(req.Amount)
	if err != nil {
		writeTypedError(w, http.StatusBadRequest, err.Error(), string(domain.KindValidation))
		return
	}

	c, err := s.ledger.Contribute(r.Context(), acct, amount, req.PlanID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// POST /api/contributions/{index}/claim
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	res, err := s.ledger.Claim(r.Context(), acct, idx)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/contributions/{index}/cancel
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	res, err := s.ledger.Cancel(r.Context(), acct, idx)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/earnings/withdraw
func (s *Server) handleWithdrawEarnings(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	amount, err := s.ledger.WithdrawEarnings(r.Context(), acct)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account":   acct,
		"withdrawn": units(amount),
	})
}

// handleActiveContributions returns one page of active records.
// GET /api/accounts/{account}/contributions?offset=N
func (s *Server) handleActiveContributions(w http.ResponseWriter, r *http.Request) {
	acct := chi.URLParam(r, "account")
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	list, err := s.ledger.ActiveContributions(r.Context(), acct, offset)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	resp := map[string]interface{}{
		"contributions": list,
		"offset":        offset,
	}
	// A full page may have more behind it; resume after the last index.
	if len(list) == s.ledger.PageSize() {
		resp["next_offset"] = list[len(list)-1].Index + 1
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/accounts/{account}/contributions/all
func (s *Server) handleAllContributions(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.Contributions(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"contributions": list})
}

// GET /api/accounts/{account}/contributions/{index}
func (s *Server) handleContribution(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	v, err := s.ledger.Contribution(r.Context(), chi.URLParam(r, "account"), idx)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GET /api/accounts/{account}/contributions/{index}/elapsed
func (s *Server) handleDaysElapsed(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	days, err := s.ledger.DaysElapsedToClaim(r.Context(), chi.URLParam(r, "account"), idx)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"days": days})
}

// GET /api/accounts/{account}/contributions/{index}/next-withdrawal
func (s *Server) handleNextWithdrawal(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	d, err := s.ledger.TimeUntilNextWithdrawal(r.Context(), chi.URLParam(r, "account"), idx)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"seconds": domain.Seconds(d),
		"human":   d.String(),
	})
}

// GET /api/accounts/{account}/value
func (s *Server) handleValueInPool(w http.ResponseWriter, r *http.Request) {
	v, err := s.ledger.ValueInPool(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, units(v))
}

// GET /api/accounts/{account}/earnings
func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	bal, total, err := s.ledger.Earnings(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance": units(bal),
		"total":   units(total),
	})
}

// GET /api/accounts/{account}/history?limit=N
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	entries, err := s.ledger.History(r.Context(), chi.URLParam(r, "account"), limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// GET /api/accounts/{account}/balance
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if s.vault == nil {
		writeError(w, http.StatusServiceUnavailable, "vault not initialized")
		return
	}
	bal, err := s.vault.BalanceOf(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, units(bal))
}

// ─── Referral Routes ────────────────────────────────────────────────────────

type createUserRequest struct {
	Sponsor string `json:"sponsor"`
}

// handleCreateUser registers the caller under sponsor.
// POST /api/users
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req createUserRequest
	if !decode(w, r, &req) {
		return
	}
	node, err := s.tree.CreateUser(r.Context(), acct, req.Sponsor)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

// GET /api/users/{account}
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	node, err := s.tree.Node(r.Context(), chi.URLParam(r, "account"))
	if isNotRegistered(err) {
		writeTypedError(w, http.StatusNotFound, err.Error(), string(domain.KindNotFound))
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// GET /api/users/{account}/upline
func (s *Server) handleUpline(w http.ResponseWriter, r *http.Request) {
	up, err := s.tree.Upline(r.Context(), chi.URLParam(r, "account"))
	if isNotRegistered(err) {
		writeTypedError(w, http.StatusNotFound, err.Error(), string(domain.KindNotFound))
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"upline": up})
}

// GET /api/users/{account}/referrals
func (s *Server) handleDirectReferrals(w http.ResponseWriter, r *http.Request) {
	list, err := s.tree.DirectReferrals(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"referrals": list})
}

// ─── Token Routes ───────────────────────────────────────────────────────────

type addTokenRequest struct {
	TokenID string `json:"token_id"`
	Symbol  string `json:"symbol"`
}

// GET /api/tokens
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tokens": s.router.Tokens()})
}

// POST /api/tokens (owner only)
func (s *Server) handleAddToken(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req addTokenRequest
	if !decode(w, r, &req) {
		return
	}
	tok, err := s.router.AddToken(r.Context(), acct, req.TokenID, req.Symbol)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tok)
}

// ─── Admin Routes ───────────────────────────────────────────────────────────

type addressRequest struct {
	Address string `json:"address"`
}

type mintRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// POST /api/admin/direct-members {address}
func (s *Server) handleIncreaseDirectMember(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.tree.IncreaseDirectMember(r.Context(), acct, req.Address); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/admin/treasury-pool {address}
func (s *Server) handleSetTreasuryPool(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.tree.SetTreasuryPool(r.Context(), acct, req.Address); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"treasury_pool": req.Address})
}

// POST /api/admin/manager {address}
func (s *Server) handleSetManager(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.tree.SetManager(r.Context(), acct, req.Address); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"manager": req.Address})
}

// handleMint credits test balances. Owner only, and only with the faucet on.
// POST /api/admin/mint {account, amount}
func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	if s.vault == nil || !s.faucet {
		writeError(w, http.StatusNotFound, "faucet disabled")
		return
	}
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	if err := s.tree.RequireOwner(acct); err != nil {
		s.writeDomainError(w, err)
		return
	}
	var req mintRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Account == "" {
		s.writeDomainError(w, domain.ErrInvalidAddress)
		return
	}
	amount, err := domain.ParseUnits(req.Amount)
	if err != nil || amount == 0 {
		writeTypedError(w, http.StatusBadRequest, "amount must be a positive decimal", string(domain.KindValidation))
		return
	}
	s.vault.Mint(req.Account, amount)
	bal, _ := s.vault.BalanceOf(r.Context(), req.Account)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": req.Account,
		"balance": units(bal),
	})
}

// ─── Schedule & Traces ──────────────────────────────────────────────────────

// GET /api/unlocks?limit=N
func (s *Server) handleUnlocks(w http.ResponseWriter, r *http.Request) {
	if s.sweeper == nil {
		writeError(w, http.StatusServiceUnavailable, "sweeper not initialized")
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"unlocks":    s.sweeper.Upcoming(limit),
		"last_sweep": s.sweeper.Last().At,
	})
}

// GET /api/spans?limit=N
func (s *Server) handleSpans(w http.ResponseWriter, r *http.Request) {
	if s.tracer == nil {
		writeError(w, http.StatusServiceUnavailable, "tracing not initialized")
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"spans": s.tracer.Spans(limit),
		"total": s.tracer.SpanCount(),
	})
}
