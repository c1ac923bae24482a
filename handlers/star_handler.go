package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ferreirogomes/starnotary/models"
	"github.com/ferreirogomes/starnotary/services"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
)

// HistoryReader lê o diário de eventos de uma estrela.
type HistoryReader interface {
	History(ctx context.Context, starID string) ([]models.Event, error)
}

// StarHandler lida com requisições HTTP relacionadas a estrelas e ao mercado.
type StarHandler struct {
	Service *services.NotaryService
	History HistoryReader
}

// NewStarHandler cria uma nova instância do handler de estrelas.
func NewStarHandler(s *services.NotaryService, history HistoryReader) *StarHandler {
	return &StarHandler{Service: s, History: history}
}

// StarView é a estrela com o preço de venda e o aprovado, quando existirem.
type StarView struct {
	models.Star
	Price    *uint64           `json:"price,omitempty"`
	Approved *solana.PublicKey `json:"approved,omitempty"`
}

// CreateStarRequest é o corpo de POST /stars.
type CreateStarRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// SaleRequest anuncia a estrela pelo preço em lamports.
type SaleRequest struct {
	Price uint64 `json:"price"`
}

// BuyRequest carrega o pagamento oferecido, debitado do saldo interno.
type BuyRequest struct {
	Payment uint64 `json:"payment"`
}

// TransferRequest indica o novo dono (base58).
type TransferRequest struct {
	To string `json:"to"`
}

// ApproveRequest indica quem pode transferir a estrela (base58).
type ApproveRequest struct {
	Spender string `json:"spender"`
}

// ExchangeRequest identifica as duas estrelas da troca.
type ExchangeRequest struct {
	StarA string `json:"star_a"`
	StarB string `json:"star_b"`
}

// GetCollection retorna nome e símbolo da coleção.
// GET /collection
func (h *StarHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Registry.Collection())
}

// CreateStar registra uma nova estrela em nome do chamador.
// POST /stars
func (h *StarHandler) CreateStar(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}
	var req CreateStarRequest
	if !decodeBody(w, r, &req) {
		return
	}

	star, err := h.Service.Registry.CreateStar(r.Context(), req.ID, req.Name, req.Symbol, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, star)
}

// GetStar obtém a estrela com preço e aprovado.
// GET /stars/{id}
func (h *StarHandler) GetStar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	star, err := h.Service.Registry.Star(id)
	if err != nil {
		writeError(w, err)
		return
	}

	view := StarView{Star: star}
	if price, err := h.Service.Registry.PriceOf(id); err == nil {
		view.Price = &price
	}
	if approved, err := h.Service.Registry.GetApproved(id); err == nil && !approved.IsZero() {
		view.Approved = &approved
	}
	writeJSON(w, http.StatusOK, view)
}

// LookUpStar retorna apenas o nome da estrela.
// GET /stars/{id}/name
func (h *StarHandler) LookUpStar(w http.ResponseWriter, r *http.Request) {
	name, err := h.Service.Registry.LookUpStar(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

// OwnerOf retorna o dono atual.
// GET /stars/{id}/owner
func (h *StarHandler) OwnerOf(w http.ResponseWriter, r *http.Request) {
	owner, err := h.Service.Registry.OwnerOf(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]solana.PublicKey{"owner": owner})
}

// PutUpForSale anuncia a estrela do chamador.
// POST /stars/{id}/sale
func (h *StarHandler) PutUpForSale(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}
	var req SaleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	listing, err := h.Service.Registry.PutStarUpForSale(r.Context(), chi.URLParam(r, "id"), req.Price, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// GetPrice retorna o preço anunciado.
// GET /stars/{id}/sale
func (h *StarHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	price, err := h.Service.Registry.PriceOf(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"price": price})
}

// BuyStar compra a estrela usando o saldo interno do chamador.
// POST /stars/{id}/buy
func (h *StarHandler) BuyStar(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}
	var req BuyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	purchase, err := h.Service.Registry.BuyStar(r.Context(), chi.URLParam(r, "id"), req.Payment, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}

// TransferStar transfere a estrela do chamador (ou aprovada para ele).
// POST /stars/{id}/transfer
func (h *StarHandler) TransferStar(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	to, ok := parseAccount(w, req.To)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Service.Registry.TransferStar(r.Context(), to, id, caller); err != nil {
		writeError(w, err)
		return
	}
	star, err := h.Service.Registry.Star(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, star)
}

// Approve delega a transferência da estrela.
// POST /stars/{id}/approve
func (h *StarHandler) Approve(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}
	var req ApproveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	spender, ok := parseAccount(w, req.Spender)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Service.Registry.Approve(r.Context(), spender, id, caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Approval{StarID: id, Spender: spender})
}

// ExchangeStars troca os donos de duas estrelas.
// POST /stars/exchange
func (h *StarHandler) ExchangeStars(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}
	var req ExchangeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.Service.Registry.ExchangeStars(r.Context(), req.StarA, req.StarB, caller); err != nil {
		writeError(w, err)
		return
	}
	starA, errA := h.Service.Registry.Star(req.StarA)
	starB, errB := h.Service.Registry.Star(req.StarB)
	if err := errors.Join(errA, errB); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, []models.Star{starA, starB})
}

// GetHistory retorna a proveniência da estrela.
// GET /stars/{id}/history
func (h *StarHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Service.Registry.Star(id); err != nil {
		writeError(w, err)
		return
	}
	if h.History == nil {
		http.Error(w, "histórico indisponível", http.StatusNotImplemented)
		return
	}

	events, err := h.History.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetMarket lista todas as ofertas ativas.
// GET /market
func (h *StarHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Registry.Listings())
}
