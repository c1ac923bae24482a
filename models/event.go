package models

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// EventKind identifica o tipo de transição registrada no diário.
type EventKind string

const (
	EventCreate   EventKind = "create"
	EventList     EventKind = "list"
	EventBuy      EventKind = "buy"
	EventTransfer EventKind = "transfer"
	EventApprove  EventKind = "approve"
	EventExchange EventKind = "exchange"
	EventDeposit  EventKind = "deposit"
	EventWithdraw EventKind = "withdraw"
)

// Event é uma entrada imutável do diário de proveniência.
type Event struct {
	ID        string           `json:"id"`
	Kind      EventKind        `json:"kind"`
	StarID    string           `json:"star_id,omitempty"`
	StarIDB   string           `json:"star_id_b,omitempty"`
	From      solana.PublicKey `json:"from"`
	To        solana.PublicKey `json:"to"`
	Amount    uint64           `json:"amount,omitempty"`
	Refund    uint64           `json:"refund,omitempty"`
	Reference string           `json:"reference,omitempty"` // Assinatura Solana de depósitos
	CreatedAt time.Time        `json:"created_at"`
}

// Transition agrupa todas as linhas alteradas por uma única operação.
// É persistida inteira ou não é persistida.
type Transition struct {
	Stars            []Star
	Listings         []Listing
	DeletedListings  []string
	Approvals        []Approval
	DeletedApprovals []string
	Accounts         []Account
	Event            Event
}

// Snapshot é o estado completo do registro, usado na inicialização.
type Snapshot struct {
	Stars     []Star
	Listings  []Listing
	Approvals []Approval
	Accounts  []Account
	// Referências de depósitos já creditados
	DepositRefs []string
}

// Purchase é o comprovante de uma compra liquidada.
type Purchase struct {
	StarID string           `json:"star_id"`
	Seller solana.PublicKey `json:"seller"`
	Buyer  solana.PublicKey `json:"buyer"`
	Price  uint64           `json:"price"`
	Refund uint64           `json:"refund"` // Excedente devolvido ao comprador
}
