package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ferreirogomes/starnotary/models"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// Journal persiste as transições do registro antes que elas sejam aplicadas em memória.
type Journal interface {
	Commit(ctx context.Context, t models.Transition) error
}

// StarRegistry é o livro-razão de estrelas: donos, ofertas de venda, aprovações e saldos.
// Toda operação de escrita é uma única transição indivisível.
type StarRegistry struct {
	mu          sync.RWMutex
	collection  models.Collection
	stars       map[string]models.Star
	listings    map[string]models.Listing
	approvals   map[string]models.Approval
	balances    map[solana.PublicKey]uint64
	depositRefs map[string]struct{}
	journal     Journal
	now         func() time.Time
}

// NewStarRegistry cria um registro vazio. journal pode ser nil (somente memória).
func NewStarRegistry(name, symbol string, journal Journal) *StarRegistry {
	return &StarRegistry{
		collection:  models.Collection{Name: name, Symbol: symbol},
		stars:       make(map[string]models.Star),
		listings:    make(map[string]models.Listing),
		approvals:   make(map[string]models.Approval),
		balances:    make(map[solana.PublicKey]uint64),
		depositRefs: make(map[string]struct{}),
		journal:     journal,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Name retorna o nome da coleção.
func (r *StarRegistry) Name() string { return r.collection.Name }

// Symbol retorna o símbolo da coleção.
func (r *StarRegistry) Symbol() string { return r.collection.Symbol }

// Collection retorna os metadados da coleção.
func (r *StarRegistry) Collection() models.Collection { return r.collection }

// Restore substitui todo o estado em memória pelo snapshot carregado do storage.
func (r *StarRegistry) Restore(s models.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stars = make(map[string]models.Star, len(s.Stars))
	for _, star := range s.Stars {
		r.stars[star.ID] = star
	}
	r.listings = make(map[string]models.Listing, len(s.Listings))
	for _, l := range s.Listings {
		r.listings[l.StarID] = l
	}
	r.approvals = make(map[string]models.Approval, len(s.Approvals))
	for _, a := range s.Approvals {
		r.approvals[a.StarID] = a
	}
	r.balances = make(map[solana.PublicKey]uint64, len(s.Accounts))
	for _, acc := range s.Accounts {
		r.balances[acc.Owner] = acc.Balance
	}
	r.depositRefs = make(map[string]struct{}, len(s.DepositRefs))
	for _, ref := range s.DepositRefs {
		r.depositRefs[ref] = struct{}{}
	}
}

// CreateStar registra uma nova estrela cujo dono passa a ser o criador.
func (r *StarRegistry) CreateStar(ctx context.Context, id, name, symbol string, creator solana.PublicKey) (models.Star, error) {
	if id == "" || name == "" || creator.IsZero() {
		return models.Star{}, starErr("create", id, ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stars[id]; exists {
		return models.Star{}, starErr("create", id, ErrDuplicateID)
	}

	star := models.Star{
		ID:        id,
		Name:      name,
		Symbol:    symbol,
		Owner:     creator,
		CreatedAt: r.now(),
	}
	err := r.commit(ctx, models.Transition{
		Stars: []models.Star{star},
		Event: models.Event{Kind: models.EventCreate, StarID: id, To: creator},
	})
	if err != nil {
		return models.Star{}, err
	}
	return star, nil
}

// PutStarUpForSale coloca a estrela à venda pelo preço informado (em lamports).
func (r *StarRegistry) PutStarUpForSale(ctx context.Context, id string, price uint64, caller solana.PublicKey) (models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	star, ok := r.stars[id]
	if !ok {
		return models.Listing{}, starErr("list", id, ErrNotFound)
	}
	if !star.Owner.Equals(caller) {
		return models.Listing{}, starErr("list", id, ErrNotOwner)
	}

	listing := models.Listing{StarID: id, Seller: caller, Price: price}
	err := r.commit(ctx, models.Transition{
		Listings: []models.Listing{listing},
		Event:    models.Event{Kind: models.EventList, StarID: id, From: caller, Amount: price},
	})
	if err != nil {
		return models.Listing{}, err
	}
	return listing, nil
}

// BuyStar liquida a compra: o preço vai para o vendedor, o excedente volta ao comprador.
// O pagamento sai do saldo interno do comprador.
func (r *StarRegistry) BuyStar(ctx context.Context, id string, payment uint64, buyer solana.PublicKey) (models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	star, ok := r.stars[id]
	if !ok {
		return models.Purchase{}, starErr("buy", id, ErrNotFound)
	}
	listing, ok := r.listings[id]
	if !ok {
		return models.Purchase{}, starErr("buy", id, ErrNotForSale)
	}
	if buyer.IsZero() || star.Owner.Equals(buyer) {
		return models.Purchase{}, starErr("buy", id, ErrInvalidInput)
	}
	if payment < listing.Price {
		return models.Purchase{}, starErr("buy", id, ErrInsufficientPayment)
	}
	if r.balances[buyer] < payment {
		return models.Purchase{}, starErr("buy", id, ErrInsufficientFunds)
	}

	seller := star.Owner
	refund := payment - listing.Price
	// Débito do pagamento e devolução do excedente na mesma transição
	buyerBalance := r.balances[buyer] - payment + refund
	sellerBalance := r.balances[seller] + listing.Price
	if sellerBalance < listing.Price {
		return models.Purchase{}, starErr("buy", id, ErrInvalidInput)
	}

	star.Owner = buyer
	t := models.Transition{
		Stars:           []models.Star{star},
		DeletedListings: []string{id},
		Accounts: []models.Account{
			{Owner: seller, Balance: sellerBalance},
			{Owner: buyer, Balance: buyerBalance},
		},
		Event: models.Event{
			Kind:   models.EventBuy,
			StarID: id,
			From:   seller,
			To:     buyer,
			Amount: listing.Price,
			Refund: refund,
		},
	}
	r.clearApproval(&t, id)
	if err := r.commit(ctx, t); err != nil {
		return models.Purchase{}, err
	}

	return models.Purchase{
		StarID: id,
		Seller: seller,
		Buyer:  buyer,
		Price:  listing.Price,
		Refund: refund,
	}, nil
}

// TransferStar transfere a estrela para `to`. O chamador precisa ser o dono ou o aprovado.
func (r *StarRegistry) TransferStar(ctx context.Context, to solana.PublicKey, id string, caller solana.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	star, ok := r.stars[id]
	if !ok {
		return starErr("transfer", id, ErrNotFound)
	}
	if !r.canTransfer(star, caller) {
		return starErr("transfer", id, ErrNotOwner)
	}
	if to.IsZero() {
		return starErr("transfer", id, ErrInvalidInput)
	}

	from := star.Owner
	star.Owner = to
	t := models.Transition{
		Stars: []models.Star{star},
		Event: models.Event{Kind: models.EventTransfer, StarID: id, From: from, To: to},
	}
	r.clearApproval(&t, id)
	r.clearListing(&t, id)
	return r.commit(ctx, t)
}

// Approve autoriza `spender` a transferir a estrela uma única vez em nome do dono.
func (r *StarRegistry) Approve(ctx context.Context, spender solana.PublicKey, id string, caller solana.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	star, ok := r.stars[id]
	if !ok {
		return starErr("approve", id, ErrNotFound)
	}
	if !star.Owner.Equals(caller) {
		return starErr("approve", id, ErrNotOwner)
	}
	if spender.IsZero() || spender.Equals(star.Owner) {
		return starErr("approve", id, ErrInvalidInput)
	}

	return r.commit(ctx, models.Transition{
		Approvals: []models.Approval{{StarID: id, Spender: spender}},
		Event:     models.Event{Kind: models.EventApprove, StarID: id, From: caller, To: spender},
	})
}

// ExchangeStars troca os donos de duas estrelas. O chamador deve ser dono de uma delas.
func (r *StarRegistry) ExchangeStars(ctx context.Context, idA, idB string, caller solana.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	starA, ok := r.stars[idA]
	if !ok {
		return starErr("exchange", idA, ErrNotFound)
	}
	starB, ok := r.stars[idB]
	if !ok {
		return starErr("exchange", idB, ErrNotFound)
	}
	if idA == idB {
		return starErr("exchange", idA, ErrInvalidInput)
	}
	if !starA.Owner.Equals(caller) && !starB.Owner.Equals(caller) {
		return starErr("exchange", idA, ErrNotOwner)
	}

	ownerA, ownerB := starA.Owner, starB.Owner
	starA.Owner, starB.Owner = ownerB, ownerA
	t := models.Transition{
		Stars: []models.Star{starA, starB},
		Event: models.Event{
			Kind:    models.EventExchange,
			StarID:  idA,
			StarIDB: idB,
			From:    ownerA,
			To:      ownerB,
		},
	}
	for _, id := range []string{idA, idB} {
		r.clearApproval(&t, id)
		r.clearListing(&t, id)
	}
	return r.commit(ctx, t)
}

// LookUpStar retorna o nome registrado da estrela.
func (r *StarRegistry) LookUpStar(id string) (string, error) {
	star, err := r.Star(id)
	if err != nil {
		return "", err
	}
	return star.Name, nil
}

// Star retorna o registro completo da estrela.
func (r *StarRegistry) Star(id string) (models.Star, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	star, ok := r.stars[id]
	if !ok {
		return models.Star{}, starErr("lookup", id, ErrNotFound)
	}
	return star, nil
}

// OwnerOf retorna o dono atual da estrela.
func (r *StarRegistry) OwnerOf(id string) (solana.PublicKey, error) {
	star, err := r.Star(id)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return star.Owner, nil
}

// PriceOf retorna o preço de venda anunciado.
func (r *StarRegistry) PriceOf(id string) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.stars[id]; !ok {
		return 0, starErr("price", id, ErrNotFound)
	}
	listing, ok := r.listings[id]
	if !ok {
		return 0, starErr("price", id, ErrNotForSale)
	}
	return listing.Price, nil
}

// GetApproved retorna o aprovado da estrela, ou a chave zero se não houver.
func (r *StarRegistry) GetApproved(id string) (solana.PublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.stars[id]; !ok {
		return solana.PublicKey{}, starErr("approved", id, ErrNotFound)
	}
	return r.approvals[id].Spender, nil
}

// StarsOf lista as estrelas de um dono, ordenadas por ID.
func (r *StarRegistry) StarsOf(owner solana.PublicKey) []models.Star {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stars := make([]models.Star, 0)
	for _, star := range r.stars {
		if star.Owner.Equals(owner) {
			stars = append(stars, star)
		}
	}
	sort.Slice(stars, func(i, j int) bool { return stars[i].ID < stars[j].ID })
	return stars
}

// Listings retorna todas as ofertas ativas, ordenadas por ID da estrela.
func (r *StarRegistry) Listings() []models.Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listings := make([]models.Listing, 0, len(r.listings))
	for _, l := range r.listings {
		listings = append(listings, l)
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].StarID < listings[j].StarID })
	return listings
}

// BalanceOf retorna o saldo interno de uma identidade.
func (r *StarRegistry) BalanceOf(account solana.PublicKey) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.balances[account]
}

// Deposit credita lamports no saldo interno. ref é a assinatura da transação de origem;
// uma mesma ref só é creditada uma vez.
func (r *StarRegistry) Deposit(ctx context.Context, account solana.PublicKey, amount uint64, ref string) (uint64, error) {
	if account.IsZero() || amount == 0 {
		return 0, starErr("deposit", "", ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ref != "" {
		if _, seen := r.depositRefs[ref]; seen {
			return r.balances[account], starErr("deposit", "", ErrAlreadyCredited)
		}
	}

	balance := r.balances[account] + amount
	if balance < amount {
		return 0, starErr("deposit", "", ErrInvalidInput)
	}
	err := r.commit(ctx, models.Transition{
		Accounts: []models.Account{{Owner: account, Balance: balance}},
		Event:    models.Event{Kind: models.EventDeposit, To: account, Amount: amount, Reference: ref},
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Withdraw debita lamports do saldo interno.
func (r *StarRegistry) Withdraw(ctx context.Context, account solana.PublicKey, amount uint64) (uint64, error) {
	if account.IsZero() || amount == 0 {
		return 0, starErr("withdraw", "", ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.balances[account] < amount {
		return r.balances[account], starErr("withdraw", "", ErrInsufficientFunds)
	}

	balance := r.balances[account] - amount
	err := r.commit(ctx, models.Transition{
		Accounts: []models.Account{{Owner: account, Balance: balance}},
		Event:    models.Event{Kind: models.EventWithdraw, From: account, Amount: amount},
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *StarRegistry) canTransfer(star models.Star, caller solana.PublicKey) bool {
	if star.Owner.Equals(caller) {
		return true
	}
	approval, ok := r.approvals[star.ID]
	return ok && approval.Spender.Equals(caller)
}

func (r *StarRegistry) clearApproval(t *models.Transition, id string) {
	if _, ok := r.approvals[id]; ok {
		t.DeletedApprovals = append(t.DeletedApprovals, id)
	}
}

func (r *StarRegistry) clearListing(t *models.Transition, id string) {
	if _, ok := r.listings[id]; ok {
		t.DeletedListings = append(t.DeletedListings, id)
	}
}

// commit persiste a transição no journal e só então a aplica em memória.
// Deve ser chamado com r.mu travado.
func (r *StarRegistry) commit(ctx context.Context, t models.Transition) error {
	t.Event.ID = uuid.New().String()
	t.Event.CreatedAt = r.now()

	if r.journal != nil {
		if err := r.journal.Commit(ctx, t); err != nil {
			return fmt.Errorf("falha ao persistir transição %s: %w", t.Event.Kind, err)
		}
	}

	for _, star := range t.Stars {
		r.stars[star.ID] = star
	}
	for _, id := range t.DeletedListings {
		delete(r.listings, id)
	}
	for _, l := range t.Listings {
		r.listings[l.StarID] = l
	}
	for _, id := range t.DeletedApprovals {
		delete(r.approvals, id)
	}
	for _, a := range t.Approvals {
		r.approvals[a.StarID] = a
	}
	for _, acc := range t.Accounts {
		r.balances[acc.Owner] = acc.Balance
	}
	if t.Event.Kind == models.EventDeposit && t.Event.Reference != "" {
		r.depositRefs[t.Event.Reference] = struct{}{}
	}
	return nil
}
