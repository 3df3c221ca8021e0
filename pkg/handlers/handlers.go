// Package handlers exposes the bank over HTTP and streams session events
// over a WebSocket.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/andrenbrandao/bankist/pkg/bank"
	"github.com/andrenbrandao/bankist/pkg/domain"
	"github.com/andrenbrandao/bankist/pkg/logger"
	"github.com/andrenbrandao/bankist/pkg/session"
	"github.com/shopspring/decimal"
)

type bankService interface {
	Login(ctx context.Context, username string, pin int) (*session.Session, error)
	Restore(ctx context.Context) (*session.Session, error)
	Logout(ctx context.Context, sessionID string) error
	Session(id string) (*session.Session, error)
	Statement(ctx context.Context, sessionID string) (bank.Statement, error)
	ToggleSort(ctx context.Context, sessionID string) (bank.Statement, error)
	Transfer(ctx context.Context, sessionID, to string, amount decimal.Decimal) error
	RequestLoan(ctx context.Context, sessionID string, amount decimal.Decimal) error
	CloseAccount(ctx context.Context, sessionID, username string, pin int) error
}

type Handler struct {
	bank   bankService
	tokens Tokens
}

func New(svc bankService, tokens Tokens) *Handler {
	return &Handler{bank: svc, tokens: tokens}
}

type credentials struct {
	Username string `json:"username"`
	Pin      int    `json:"pin"`
}

type transferRequest struct {
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type loanRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	Statement bank.Statement `json:"statement"`
}

var statuses = []struct {
	err  error
	code int
}{
	{domain.ErrInvalidAmount, http.StatusBadRequest},
	{domain.ErrSameAccount, http.StatusBadRequest},
	{domain.ErrIncorrectCredentials, http.StatusUnauthorized},
	{domain.ErrNoActiveSession, http.StatusUnauthorized},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrAccountExists, http.StatusConflict},
	{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
	{domain.ErrLoanNotQualified, http.StatusUnprocessableEntity},
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("error while encoding response to JSON", logger.Error(err))
	}
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			http.Error(w, err.Error(), s.code)
			return
		}
	}
	logger.Log.Error("request failed", logger.String("url", r.RequestURI), logger.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Log.Warn("error while decoding request", logger.String("url", r.RequestURI), logger.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("Server is running!\n"))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decode(w, r, &req) {
		return
	}

	sess, err := h.bank.Login(r.Context(), req.Username, req.Pin)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	h.opened(w, r, sess)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	sess, err := h.bank.Restore(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	h.opened(w, r, sess)
}

func (h *Handler) opened(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	token, err := h.tokens.Issue(sess.ID, sess.Username, time.Now())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	st, err := h.bank.Statement(r.Context(), sess.ID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Statement: st})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.bank.Logout(r.Context(), sessionID(r)); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	st, err := h.bank.Statement(r.Context(), sessionID(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) Sort(w http.ResponseWriter, r *http.Request) {
	st, err := h.bank.ToggleSort(r.Context(), sessionID(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}

	id := sessionID(r)
	if err := h.bank.Transfer(r.Context(), id, req.To, req.Amount); err != nil {
		writeErr(w, r, err)
		return
	}
	h.respondStatement(w, r, id, http.StatusOK)
}

func (h *Handler) Loan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if !decode(w, r, &req) {
		return
	}

	id := sessionID(r)
	if err := h.bank.RequestLoan(r.Context(), id, req.Amount); err != nil {
		writeErr(w, r, err)
		return
	}
	h.respondStatement(w, r, id, http.StatusAccepted)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decode(w, r, &req) {
		return
	}

	if err := h.bank.CloseAccount(r.Context(), sessionID(r), req.Username, req.Pin); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondStatement(w http.ResponseWriter, r *http.Request, id string, code int) {
	st, err := h.bank.Statement(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, code, st)
}
