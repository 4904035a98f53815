package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/distri-network/distri/internal/app/market"
	"github.com/distri-network/distri/internal/domain"
)

// ─── Request Parsing ────────────────────────────────────────────────────────

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func pathPubkey(r *http.Request, name string) (domain.Pubkey, error) {
	return domain.ParsePubkey(chi.URLParam(r, name))
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", name, err)
	}
	return id, nil
}

// requireSelf rejects a request whose path identity differs from the signer.
func requireSelf(w http.ResponseWriter, r *http.Request, param string) (domain.Pubkey, bool) {
	pk, err := pathPubkey(r, param)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pubkey", err.Error())
		return pk, false
	}
	if pk != signerFrom(r.Context()) {
		writeError(w, http.StatusForbidden, "unauthorized", "signer does not own "+pk.String())
		return pk, false
	}
	return pk, true
}

// ─── Machines ───────────────────────────────────────────────────────────────

type addMachineRequest struct {
	UUID     uuid.UUID `json:"uuid"`
	Metadata string    `json:"metadata"`
}

func (s *Server) handleAddMachine(w http.ResponseWriter, r *http.Request) {
	var req addMachineRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	owner := signerFrom(r.Context())
	if err := s.engine.AddMachine(r.Context(), owner, req.UUID, req.Metadata); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.respondMachine(w, r, http.StatusCreated, owner, req.UUID)
}

// machineOp runs a machine transition for the signer's own machine.
func (s *Server) machineOp(w http.ResponseWriter, r *http.Request, op func(owner domain.Pubkey, id uuid.UUID) error) {
	owner, ok := requireSelf(w, r, "owner")
	if !ok {
		return
	}
	id, err := pathUUID(r, "uuid")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := op(owner, id); err != nil {
		s.writeEngineError(w, err)
		return
	}
	if r.Method == http.MethodDelete {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.respondMachine(w, r, http.StatusOK, owner, id)
}

func (s *Server) handleRemoveMachine(w http.ResponseWriter, r *http.Request) {
	s.machineOp(w, r, func(owner domain.Pubkey, id uuid.UUID) error {
		return s.engine.RemoveMachine(r.Context(), owner, id)
	})
}

func (s *Server) handleMakeOffer(w http.ResponseWriter, r *http.Request) {
	var offer market.Offer
	if err := decodeBody(r, &offer); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s.machineOp(w, r, func(owner domain.Pubkey, id uuid.UUID) error {
		return s.engine.MakeOffer(r.Context(), owner, id, offer)
	})
}

func (s *Server) handleCancelOffer(w http.ResponseWriter, r *http.Request) {
	s.machineOp(w, r, func(owner domain.Pubkey, id uuid.UUID) error {
		return s.engine.CancelOffer(r.Context(), owner, id)
	})
}

func (s *Server) respondMachine(w http.ResponseWriter, r *http.Request, status int, owner domain.Pubkey, id uuid.UUID) {
	m, err := s.engine.GetMachine(r.Context(), owner, id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, status, m)
}

func (s *Server) handleGetMachine(w http.ResponseWriter, r *http.Request) {
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
	s.respondMachine(w, r, http.StatusOK, owner, id)
}

// handleListMachines accepts optional owner and status query filters.
func (s *Server) handleListMachines(w http.ResponseWriter, r *http.Request) {
	var f market.MachineFilter
	if q := r.URL.Query().Get("owner"); q != "" {
		owner, err := domain.ParsePubkey(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pubkey", err.Error())
			return
		}
		f.Owner = owner
	}
	if q := r.URL.Query().Get("status"); q != "" {
		f.Status = domain.MachineStatus(q)
		if !f.Status.Valid() {
			writeError(w, http.StatusBadRequest, "bad_request", "unknown machine status "+q)
			return
		}
	}
	machines, err := s.engine.ListMachines(r.Context(), f)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"machines": nonNil(machines)})
}

// ─── Orders ─────────────────────────────────────────────────────────────────

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req market.PlaceOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	o, err := s.engine.PlaceOrder(r.Context(), signerFrom(r.Context()), req)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// orderPath parses the {buyer}/{id} order address.
func orderPath(w http.ResponseWriter, r *http.Request) (domain.Pubkey, uuid.UUID, bool) {
	buyer, err := pathPubkey(r, "buyer")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pubkey", err.Error())
		return buyer, uuid.Nil, false
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return buyer, uuid.Nil, false
	}
	return buyer, id, true
}

// buyerOp runs an order operation that only the buyer may sign.
func (s *Server) buyerOp(w http.ResponseWriter, r *http.Request, op func(buyer domain.Pubkey, id uuid.UUID) error) {
	if _, ok := requireSelf(w, r, "buyer"); !ok {
		return
	}
	buyer, id, ok := orderPath(w, r)
	if !ok {
		return
	}
	if err := op(buyer, id); err != nil {
		s.writeEngineError(w, err)
		return
	}
	if r.Method == http.MethodDelete {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.respondOrder(w, r, buyer, id)
}

// sellerOp runs an order operation signed by the order's seller.
func (s *Server) sellerOp(w http.ResponseWriter, r *http.Request, op func(seller, buyer domain.Pubkey, id uuid.UUID) error) {
	buyer, id, ok := orderPath(w, r)
	if !ok {
		return
	}
	if err := op(signerFrom(r.Context()), buyer, id); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.respondOrder(w, r, buyer, id)
}

func (s *Server) handleStartOrder(w http.ResponseWriter, r *http.Request) {
	s.sellerOp(w, r, func(seller, buyer domain.Pubkey, id uuid.UUID) error {
		return s.engine.StartOrder(r.Context(), seller, buyer, id)
	})
}

type renewRequest struct {
	Duration uint32 `json:"duration"` // extra hours
}

func (s *Server) handleRenewOrder(w http.ResponseWriter, r *http.Request) {
	var req renewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s.buyerOp(w, r, func(buyer domain.Pubkey, id uuid.UUID) error {
		return s.engine.RenewOrder(r.Context(), buyer, id, req.Duration)
	})
}

func (s *Server) handleRefundOrder(w http.ResponseWriter, r *http.Request) {
	s.buyerOp(w, r, func(buyer domain.Pubkey, id uuid.UUID) error {
		return s.engine.RefundOrder(r.Context(), buyer, id)
	})
}

type completeRequest struct {
	Metadata string `json:"metadata"`
	Score    uint8  `json:"score"`
}

func (s *Server) handleOrderCompleted(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s.sellerOp(w, r, func(seller, buyer domain.Pubkey, id uuid.UUID) error {
		return s.engine.OrderCompleted(r.Context(), seller, buyer, id, req.Metadata, req.Score)
	})
}

func (s *Server) handleOrderFailed(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s.sellerOp(w, r, func(seller, buyer domain.Pubkey, id uuid.UUID) error {
		return s.engine.OrderFailed(r.Context(), seller, buyer, id, req.Metadata)
	})
}

func (s *Server) handleRemoveOrder(w http.ResponseWriter, r *http.Request) {
	s.buyerOp(w, r, func(buyer domain.Pubkey, id uuid.UUID) error {
		return s.engine.RemoveOrder(r.Context(), buyer, id)
	})
}

func (s *Server) respondOrder(w http.ResponseWriter, r *http.Request, buyer domain.Pubkey, id uuid.UUID) {
	o, err := s.engine.GetOrder(r.Context(), buyer, id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	buyer, id, ok := orderPath(w, r)
	if !ok {
		return
	}
	s.respondOrder(w, r, buyer, id)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	buyer, err := pathPubkey(r, "buyer")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pubkey", err.Error())
		return
	}
	orders, err := s.engine.ListOrders(r.Context(), buyer)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": nonNil(orders)})
}

// nonNil renders an empty list as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
