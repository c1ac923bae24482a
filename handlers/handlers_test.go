package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ferreirogomes/starnotary/handlers"
	"github.com/ferreirogomes/starnotary/logs"
	"github.com/ferreirogomes/starnotary/models"
	"github.com/ferreirogomes/starnotary/services"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSettlement é uma implementação mock do services.Settlement
type MockSettlement struct {
	mock.Mock
}

func (m *MockSettlement) Payout(ctx context.Context, to solana.PublicKey, lamports uint64) (solana.Signature, error) {
	args := m.Called(ctx, to, lamports)
	return args.Get(0).(solana.Signature), args.Error(1)
}

// MockHistory é uma implementação mock do handlers.HistoryReader
type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) History(ctx context.Context, starID string) ([]models.Event, error) {
	args := m.Called(ctx, starID)
	return args.Get(0).([]models.Event), args.Error(1)
}

type testAPI struct {
	handler    http.Handler
	service    *services.NotaryService
	settlement *MockSettlement
	history    *MockHistory
}

func newTestAPI(requireSignature bool) *testAPI {
	settlement := new(MockSettlement)
	history := new(MockHistory)
	registry := services.NewStarRegistry("My STAR COLLECTIONS", "SYT", nil)
	service := services.NewNotaryService(registry, settlement, logs.Discard())

	router := handlers.NewRouter(
		handlers.NewStarHandler(service, history),
		handlers.NewAccountHandler(service, true),
		handlers.RouterOptions{
			Logger:           logs.Discard(),
			AllowedOrigins:   []string{"*"},
			RequireSignature: requireSignature,
		},
	)
	return &testAPI{handler: router, service: service, settlement: settlement, history: history}
}

// do executa a requisição; caller zero significa requisição anônima.
func (a *testAPI) do(t *testing.T, method, path string, caller solana.PublicKey, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if !caller.IsZero() {
		req.Header.Set(handlers.HeaderCaller, caller.String())
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func TestGetCollection(t *testing.T) {
	api := newTestAPI(false)

	rr := api.do(t, http.MethodGet, "/collection", solana.PublicKey{}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var collection models.Collection
	decode(t, rr, &collection)
	assert.Equal(t, "My STAR COLLECTIONS", collection.Name)
	assert.Equal(t, "SYT", collection.Symbol)
}

func TestCreateAndLookUpStar(t *testing.T) {
	api := newTestAPI(false)
	user1 := newKey()

	rr := api.do(t, http.MethodPost, "/stars", user1, handlers.CreateStarRequest{ID: "1", Name: "Awesome Star!"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = api.do(t, http.MethodGet, "/stars/1/name", solana.PublicKey{}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var name map[string]string
	decode(t, rr, &name)
	assert.Equal(t, "Awesome Star!", name["name"])

	rr = api.do(t, http.MethodGet, "/stars/1/owner", solana.PublicKey{}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var owner map[string]solana.PublicKey
	decode(t, rr, &owner)
	assert.Equal(t, user1, owner["owner"])

	rr = api.do(t, http.MethodPost, "/stars", newKey(), handlers.CreateStarRequest{ID: "1", Name: "Again"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(t, http.MethodGet, "/stars/404/name", solana.PublicKey{}, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateStarRequiresCaller(t *testing.T) {
	api := newTestAPI(false)

	rr := api.do(t, http.MethodPost, "/stars", solana.PublicKey{}, handlers.CreateStarRequest{ID: "1", Name: "x"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = api.do(t, http.MethodPost, "/stars", newKey(), handlers.CreateStarRequest{ID: "", Name: "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// TestSaleFlow percorre anúncio, compra e saldos pela API
func TestSaleFlow(t *testing.T) {
	api := newTestAPI(false)
	seller, buyer := newKey(), newKey()
	price := solana.LAMPORTS_PER_SOL / 100

	rr := api.do(t, http.MethodPost, "/accounts/"+buyer.String()+"/deposit", solana.PublicKey{}, handlers.AmountRequest{Amount: solana.LAMPORTS_PER_SOL})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(t, http.MethodPost, "/stars", seller, handlers.CreateStarRequest{ID: "5", Name: "awesome star"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = api.do(t, http.MethodPost, "/stars/5/sale", buyer, handlers.SaleRequest{Price: price})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(t, http.MethodPost, "/stars/5/buy", buyer, handlers.BuyRequest{Payment: price})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(t, http.MethodPost, "/stars/5/sale", seller, handlers.SaleRequest{Price: price})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(t, http.MethodGet, "/stars/5/sale", solana.PublicKey{}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var gotPrice map[string]uint64
	decode(t, rr, &gotPrice)
	assert.Equal(t, price, gotPrice["price"])

	rr = api.do(t, http.MethodGet, "/market", solana.PublicKey{}, nil)
	var market []models.Listing
	decode(t, rr, &market)
	require.Len(t, market, 1)
	assert.Equal(t, seller, market[0].Seller)

	rr = api.do(t, http.MethodPost, "/stars/5/buy", buyer, handlers.BuyRequest{Payment: price - 1})
	assert.Equal(t, http.StatusPaymentRequired, rr.Code)

	rr = api.do(t, http.MethodPost, "/stars/5/buy", buyer, handlers.BuyRequest{Payment: 5 * price})
	require.Equal(t, http.StatusOK, rr.Code)
	var purchase models.Purchase
	decode(t, rr, &purchase)
	assert.Equal(t, 4*price, purchase.Refund)

	rr = api.do(t, http.MethodGet, "/accounts/"+buyer.String(), solana.PublicKey{}, nil)
	var account models.Account
	decode(t, rr, &account)
	assert.Equal(t, solana.LAMPORTS_PER_SOL-price, account.Balance)

	rr = api.do(t, http.MethodGet, "/accounts/"+seller.String(), solana.PublicKey{}, nil)
	decode(t, rr, &account)
	assert.Equal(t, price, account.Balance)

	rr = api.do(t, http.MethodGet, "/accounts/"+buyer.String()+"/stars", solana.PublicKey{}, nil)
	var stars []models.Star
	decode(t, rr, &stars)
	require.Len(t, stars, 1)
	assert.Equal(t, "5", stars[0].ID)
}

func TestApproveTransferAndGetStar(t *testing.T) {
	api := newTestAPI(false)
	owner, spender, receiver := newKey(), newKey(), newKey()

	require.Equal(t, http.StatusCreated,
		api.do(t, http.MethodPost, "/stars", owner, handlers.CreateStarRequest{ID: "1", Name: "Awesome star"}).Code)

	rr := api.do(t, http.MethodPost, "/stars/1/approve", owner, handlers.ApproveRequest{Spender: spender.String()})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(t, http.MethodGet, "/stars/1", solana.PublicKey{}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var view handlers.StarView
	decode(t, rr, &view)
	require.NotNil(t, view.Approved)
	assert.Equal(t, spender, *view.Approved)
	assert.Nil(t, view.Price)

	rr = api.do(t, http.MethodPost, "/stars/1/transfer", spender, handlers.TransferRequest{To: "not-a-key"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodPost, "/stars/1/transfer", spender, handlers.TransferRequest{To: receiver.String()})
	require.Equal(t, http.StatusOK, rr.Code)
	var star models.Star
	decode(t, rr, &star)
	assert.Equal(t, receiver, star.Owner)

	rr = api.do(t, http.MethodPost, "/stars/1/transfer", spender, handlers.TransferRequest{To: spender.String()})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestExchangeStars(t *testing.T) {
	api := newTestAPI(false)
	user1, user2 := newKey(), newKey()

	require.Equal(t, http.StatusCreated,
		api.do(t, http.MethodPost, "/stars", user1, handlers.CreateStarRequest{ID: "1", Name: "Awesome star 1"}).Code)
	require.Equal(t, http.StatusCreated,
		api.do(t, http.MethodPost, "/stars", user2, handlers.CreateStarRequest{ID: "2", Name: "Awesome star 2"}).Code)

	rr := api.do(t, http.MethodPost, "/stars/exchange", newKey(), handlers.ExchangeRequest{StarA: "1", StarB: "2"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(t, http.MethodPost, "/stars/exchange", user1, handlers.ExchangeRequest{StarA: "1", StarB: "2"})
	require.Equal(t, http.StatusOK, rr.Code)
	var stars []models.Star
	decode(t, rr, &stars)
	require.Len(t, stars, 2)
	assert.Equal(t, user2, stars[0].Owner)
	assert.Equal(t, user1, stars[1].Owner)
}

func TestGetHistory(t *testing.T) {
	api := newTestAPI(false)
	owner := newKey()

	require.Equal(t, http.StatusCreated,
		api.do(t, http.MethodPost, "/stars", owner, handlers.CreateStarRequest{ID: "1", Name: "Awesome star"}).Code)
	api.history.On("History", mock.Anything, "1").Return([]models.Event{
		{ID: "e1", Kind: models.EventCreate, StarID: "1", To: owner},
	}, nil)

	rr := api.do(t, http.MethodGet, "/stars/1/history", solana.PublicKey{}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var events []models.Event
	decode(t, rr, &events)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventCreate, events[0].Kind)

	rr = api.do(t, http.MethodGet, "/stars/2/history", solana.PublicKey{}, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWithdraw(t *testing.T) {
	api := newTestAPI(false)
	user := newKey()

	_, err := api.service.Registry.Deposit(context.Background(), user, 1000, "")
	require.NoError(t, err)
	api.settlement.On("Payout", mock.Anything, user, uint64(300)).Return(solana.Signature{5}, nil).Once()
	api.settlement.On("Payout", mock.Anything, user, uint64(100)).Return(solana.Signature{}, errors.New("rpc down")).Once()

	rr := api.do(t, http.MethodPost, "/accounts/withdraw", user, handlers.AmountRequest{Amount: 300})
	require.Equal(t, http.StatusOK, rr.Code)
	var withdrawal models.Withdrawal
	decode(t, rr, &withdrawal)
	assert.Equal(t, uint64(700), withdrawal.Balance)

	rr = api.do(t, http.MethodPost, "/accounts/withdraw", user, handlers.AmountRequest{Amount: 5000})
	assert.Equal(t, http.StatusPaymentRequired, rr.Code)

	rr = api.do(t, http.MethodPost, "/accounts/withdraw", user, handlers.AmountRequest{Amount: 100})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, uint64(700), api.service.Registry.BalanceOf(user))
}

func TestDepositFaucetDisabled(t *testing.T) {
	service := services.NewNotaryService(services.NewStarRegistry("C", "S", nil), nil, logs.Discard())
	router := handlers.NewRouter(
		handlers.NewStarHandler(service, nil),
		handlers.NewAccountHandler(service, false),
		handlers.RouterOptions{Logger: logs.Discard()},
	)

	body, _ := json.Marshal(handlers.AmountRequest{Amount: 10})
	req := httptest.NewRequest(http.MethodPost, "/accounts/"+newKey().String()+"/deposit", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/accounts/withdraw", bytes.NewReader(body))
	req.Header.Set(handlers.HeaderCaller, newKey().String())
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
