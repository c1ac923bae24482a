package models

import "github.com/gagliardetto/solana-go"

// Account é o saldo interno (em lamports) de uma identidade.
type Account struct {
	Owner   solana.PublicKey `json:"owner"`
	Balance uint64           `json:"balance"`
}

// Withdrawal é o comprovante de um saque pago on-chain.
type Withdrawal struct {
	Owner     solana.PublicKey `json:"owner"`
	Amount    uint64           `json:"amount"`
	Balance   uint64           `json:"balance"`
	Signature string           `json:"signature"`
}
