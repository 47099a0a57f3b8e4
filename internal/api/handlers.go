package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/likebank/likebank/internal/config"
	"github.com/likebank/likebank/internal/domain"
	"github.com/likebank/likebank/internal/engine"
)

type placeOrderReq struct {
	Kind         string `json:"kind"`
	TargetURL    string `json:"target_url"`
	TargetCount  int    `json:"target_count"`
	RequiredText string `json:"required_text,omitempty"`
}

type placeOrderResp struct {
	OrderID    int64           `json:"order_id"`
	Cost       decimal.Decimal `json:"cost"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.engine.PlaceOrder(r.Context(), principalFrom(r.Context()), engine.OrderSpec{
		Kind:         domain.OrderKind(req.Kind),
		TargetURL:    req.TargetURL,
		TargetCount:  req.TargetCount,
		RequiredText: req.RequiredText,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, placeOrderResp{
		OrderID:    res.OrderID,
		Cost:       res.Cost,
		NewBalance: res.NewBalance,
	})
}

type orderResp struct {
	OrderID        int64  `json:"order_id"`
	Kind           string `json:"kind"`
	TargetURL      string `json:"target_url"`
	TargetCount    int    `json:"target_count"`
	RemainingCount int    `json:"remaining_count"`
	Status         string `json:"status"`
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.engine.ListOrders(r.Context(), principalFrom(r.Context()))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderResp{
			OrderID:        o.ID,
			Kind:           string(o.Kind),
			TargetURL:      o.TargetURL,
			TargetCount:    o.TargetCount,
			RemainingCount: o.RemainingCount,
			Status:         string(o.Status),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	res, err := s.engine.CancelOrder(r.Context(), principalFrom(r.Context()), orderID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_status":   string(res.OrderStatus),
		"refunded_tasks": res.RefundedTasks,
		"refunded":       res.Refunded,
		"new_balance":    res.NewBalance,
	})
}

type taskResp struct {
	TaskID       int64     `json:"task_id"`
	OrderID      int64     `json:"order_id"`
	Kind         string    `json:"kind"`
	TargetURL    string    `json:"target_url"`
	RequiredText string    `json:"required_text,omitempty"`
	Deadline     time.Time `json:"deadline"`
}

func (s *Server) handleTakeTask(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.TakeTask(r.Context(), principalFrom(r.Context()))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResp{
		TaskID:       view.TaskID,
		OrderID:      view.OrderID,
		Kind:         string(view.Kind),
		TargetURL:    view.TargetURL,
		RequiredText: view.RequiredText,
		Deadline:     view.Deadline,
	})
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := strconv.ParseInt(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	res, err := s.engine.CompleteTask(r.Context(), principalFrom(r.Context()), taskID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome":      string(res.Outcome),
		"reason":       res.Reason,
		"credited":     res.Credited,
		"new_balance":  res.NewBalance,
		"order_status": string(res.OrderStatus),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Balance(r.Context(), principalFrom(r.Context()), config.BalanceHistoryLimit)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	entries := make([]map[string]any, 0, len(view.Recent))
	for _, e := range view.Recent {
		entries = append(entries, map[string]any{
			"delta":      e.Delta,
			"reason":     string(e.Reason),
			"ref":        e.Ref,
			"created_at": e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance": view.Balance,
		"recent":  entries,
	})
}

// writeEngineError maps engine error kinds to HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidTarget) || errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrBanned) || errors.Is(err, domain.ErrNotOwner) || errors.Is(err, domain.ErrNotYours):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrOrderNotFound) ||
		errors.Is(err, domain.ErrTaskNotFound) || errors.Is(err, domain.ErrNoTasksAvailable):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrHasActiveTask) ||
		errors.Is(err, domain.ErrWrongState) || errors.Is(err, domain.ErrExpired) ||
		errors.Is(err, domain.ErrIllegalTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		s.log.Error().Err(err).Msg("storage unavailable")
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		s.log.Error().Err(err).Msg("unhandled engine error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	// Unknown fields are rejected at ingress.
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
