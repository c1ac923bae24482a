package models

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Star representa um registro único do catálogo de estrelas.
type Star struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Symbol    string           `json:"symbol,omitempty"` // Opcional, ex: "ORI"
	Owner     solana.PublicKey `json:"owner"`
	CreatedAt time.Time        `json:"created_at"`
}

// Listing representa uma oferta de venda ativa de uma estrela.
type Listing struct {
	StarID string           `json:"star_id"`
	Seller solana.PublicKey `json:"seller"`
	Price  uint64           `json:"price"` // Em lamports
}

// Approval é a permissão delegada para transferir uma estrela específica.
type Approval struct {
	StarID  string           `json:"star_id"`
	Spender solana.PublicKey `json:"spender"`
}

// Collection guarda os metadados de exibição do próprio registro.
type Collection struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}
