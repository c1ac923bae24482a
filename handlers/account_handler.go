package handlers

import (
	"net/http"

	"github.com/ferreirogomes/starnotary/models"
	"github.com/ferreirogomes/starnotary/services"

	"github.com/go-chi/chi/v5"
)

// AccountHandler lida com saldos, depósitos e saques.
type AccountHandler struct {
	Service *services.NotaryService
	Faucet  bool // Depósitos via HTTP, somente em desenvolvimento
}

// NewAccountHandler cria uma nova instância do handler de contas.
func NewAccountHandler(s *services.NotaryService, faucet bool) *AccountHandler {
	return &AccountHandler{Service: s, Faucet: faucet}
}

// AmountRequest é o valor em lamports de depósitos e saques.
type AmountRequest struct {
	Amount uint64 `json:"amount"`
}

// GetAccount retorna o saldo interno da conta.
// GET /accounts/{id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAccount(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.Account{Owner: owner, Balance: h.Service.Registry.BalanceOf(owner)})
}

// GetAccountStars lista as estrelas da conta.
// GET /accounts/{id}/stars
func (h *AccountHandler) GetAccountStars(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAccount(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Service.Registry.StarsOf(owner))
}

// Deposit credita lamports sem transação on-chain (faucet de desenvolvimento).
// POST /accounts/{id}/deposit
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	if !h.Faucet {
		http.Error(w, "faucet desativado", http.StatusForbidden)
		return
	}
	owner, ok := parseAccount(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req AmountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	balance, err := h.Service.Registry.Deposit(r.Context(), owner, req.Amount, "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Account{Owner: owner, Balance: balance})
}

// Withdraw saca lamports do saldo do chamador para a sua carteira Solana.
// POST /accounts/withdraw
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	withdrawal, err := h.Service.Withdraw(r.Context(), caller, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawal)
}
