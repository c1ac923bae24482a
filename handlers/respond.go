package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ferreirogomes/starnotary/services"

	"github.com/gagliardetto/solana-go"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError traduz os erros do registro em códigos HTTP.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateID),
		errors.Is(err, services.ErrNotForSale),
		errors.Is(err, services.ErrAlreadyCredited):
		status = http.StatusConflict
	case errors.Is(err, services.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrInsufficientPayment),
		errors.Is(err, services.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, services.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrSettlementDisabled):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func parseAccount(w http.ResponseWriter, s string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil || key.IsZero() {
		http.Error(w, "chave pública inválida", http.StatusBadRequest)
		return solana.PublicKey{}, false
	}
	return key, true
}

func mustCaller(w http.ResponseWriter, r *http.Request) (solana.PublicKey, bool) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		http.Error(w, "chamador não identificado", http.StatusUnauthorized)
	}
	return caller, ok
}
