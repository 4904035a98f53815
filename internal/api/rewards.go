package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/distri-network/distri/internal/app/market"
	"github.com/distri-network/distri/internal/domain"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ─── Schedule ───────────────────────────────────────────────────────────────

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mint":        s.engine.Mint(),
		"vault":       s.engine.Vault(),
		"reward_pool": s.engine.RewardPool(),
		"schedule":    s.engine.Schedule().Config(),
		"now":         s.clock.Now(),
	})
}

// periodInfo returns a memoized PeriodInfo. Period parameters never change
// while the server runs.
func (s *Server) periodInfo(p uint32) market.PeriodInfo {
	key := strconv.FormatUint(uint64(p), 10)
	if v, ok := s.periods.Get(key); ok {
		return v.(market.PeriodInfo)
	}
	info := s.engine.Period(p)
	s.periods.Set(key, info, cache.DefaultExpiration)
	return info
}

func (s *Server) handleCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	current := s.engine.Schedule().CurrentPeriod(s.clock.Now())
	writeJSON(w, http.StatusOK, s.periodInfo(current))
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	p, err := pathPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.periodInfo(p))
}

func pathPeriod(r *http.Request) (uint32, error) {
	p, err := strconv.ParseUint(chi.URLParam(r, "period"), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("period: %w", err)
	}
	return uint32(p), nil
}

// ─── Tasks & Rewards ────────────────────────────────────────────────────────

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req market.SubmitTaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	owner := signerFrom(r.Context())
	if err := s.engine.SubmitTask(r.Context(), owner, req); err != nil {
		s.writeEngineError(w, err)
		return
	}
	task, err := s.engine.GetTask(r.Context(), owner, req.TaskID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	owner, err := pathPubkey(r, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pubkey", err.Error())
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	task, err := s.engine.GetTask(r.Context(), owner, id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type claimRequest struct {
	MachineID uuid.UUID `json:"machine_id"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	period, err := pathPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	paid, err := s.engine.Claim(r.Context(), signerFrom(r.Context()), req.MachineID, period)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"period": period, "amount": paid})
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := s.engine.RewardPoolDeposit(r.Context(), signerFrom(r.Context()), req.Amount); err != nil {
		s.writeEngineError(w, err)
		return
	}
	pool, err := s.engine.RewardPoolBalance(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reward_pool": pool})
}

func (s *Server) handleGetReward(w http.ResponseWriter, r *http.Request) {
	period, err := pathPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	reward, err := s.engine.GetReward(r.Context(), period)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (s *Server) handleGetRewardMachine(w http.ResponseWriter, r *http.Request) {
	period, err := pathPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	owner, err := pathPubkey(r, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pubkey", err.Error())
		return
	}
	id, err := pathUUID(r, "uuid")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	rm, err := s.engine.GetRewardMachine(r.Context(), period, owner, id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

// ─── Catalog ────────────────────────────────────────────────────────────────

func (s *Server) handleCreateAiModel(w http.ResponseWriter, r *http.Request) {
	var m domain.AiModel
	if err := decodeBody(r, &m); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	owner := signerFrom(r.Context())
	if err := s.engine.CreateAiModel(r.Context(), owner, m); err != nil {
		s.writeEngineError(w, err)
		return
	}
	created, err := s.engine.GetAiModel(r.Context(), owner, m.Name)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleRemoveAiModel(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireSelf(w, r, "owner")
	if !ok {
		return
	}
	if err := s.engine.RemoveAiModel(r.Context(), owner, chi.URLParam(r, "name")); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetAiModel(w http.ResponseWriter, r *http.Request) {
	owner, err := pathPubkey(r, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pubkey", err.Error())
		return
	}
	m, err := s.engine.GetAiModel(r.Context(), owner, chi.URLParam(r, "name"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListAiModels(w http.ResponseWriter, r *http.Request) {
	owner, ok := queryOwner(w, r)
	if !ok {
		return
	}
	models, err := s.engine.ListAiModels(r.Context(), owner)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ai_models": nonNil(models)})
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var d domain.Dataset
	if err := decodeBody(r, &d); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	owner := signerFrom(r.Context())
	if err := s.engine.CreateDataset(r.Context(), owner, d); err != nil {
		s.writeEngineError(w, err)
		return
	}
	created, err := s.engine.GetDataset(r.Context(), owner, d.Name)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleRemoveDataset(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireSelf(w, r, "owner")
	if !ok {
		return
	}
	if err := s.engine.RemoveDataset(r.Context(), owner, chi.URLParam(r, "name")); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	owner, err := pathPubkey(r, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pubkey", err.Error())
		return
	}
	d, err := s.engine.GetDataset(r.Context(), owner, chi.URLParam(r, "name"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	owner, ok := queryOwner(w, r)
	if !ok {
		return
	}
	datasets, err := s.engine.ListDatasets(r.Context(), owner)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": nonNil(datasets)})
}

func queryOwner(w http.ResponseWriter, r *http.Request) (domain.Pubkey, bool) {
	q := r.URL.Query().Get("owner")
	if q == "" {
		return domain.Pubkey{}, true
	}
	owner, err := domain.ParsePubkey(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pubkey", err.Error())
		return owner, false
	}
	return owner, true
}

// ─── Statistics ─────────────────────────────────────────────────────────────

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	owner, err := pathPubkey(r, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pubkey", err.Error())
		return
	}
	stats, err := s.engine.GetStatistics(r.Context(), owner)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleReportReward credits the path owner; the signer must be an admin.
func (s *Server) handleReportReward(w http.ResponseWriter, r *http.Request) {
	owner, err := pathPubkey(r, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pubkey", err.Error())
		return
	}
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := s.engine.ReportAiModelDatasetReward(r.Context(), signerFrom(r.Context()), owner, req.Amount); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.handleGetStatistics(w, r)
}

func (s *Server) handleClaimAiModelDatasetReward(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireSelf(w, r, "owner")
	if !ok {
		return
	}
	paid, err := s.engine.ClaimAiModelDatasetReward(r.Context(), owner)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"amount": paid})
}

// ─── Balances ───────────────────────────────────────────────────────────────

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	var owner domain.Pubkey
	switch p := chi.URLParam(r, "owner"); p {
	case "vault":
		owner = s.engine.Vault()
	case "reward-pool":
		owner = s.engine.RewardPool()
	default:
		var err error
		if owner, err = domain.ParsePubkey(p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pubkey", err.Error())
			return
		}
	}
	bal, err := s.engine.Balance(r.Context(), owner)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":   owner,
		"mint":    s.engine.Mint(),
		"balance": bal,
	})
}

func (s *Server) handleLedgerHistory(w http.ResponseWriter, r *http.Request) {
	owner, err := pathPubkey(r, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pubkey", err.Error())
		return
	}
	limit := defaultHistoryLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var entries []domain.LedgerEntry
	err = s.store.View(r.Context(), func(tx domain.Tx) error {
		var err error
		entries, err = s.ledger.History(tx, s.engine.Mint(), owner, limit)
		return err
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": nonNil(entries)})
}
