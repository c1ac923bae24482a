package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
)

// SolanaRPC é o subconjunto do rpc.Client usado na liquidação.
type SolanaRPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetBalance(ctx context.Context, publicKey solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
}

// SolanaSettlementService move lamports entre a tesouraria e as carteiras dos usuários.
type SolanaSettlementService struct {
	RPCClient SolanaRPC
	Treasury  solana.PrivateKey
	Logger    *slog.Logger
}

// NewSolanaSettlementService conecta ao RPC e carrega a chave da tesouraria.
func NewSolanaSettlementService(rpcURL, treasuryKeyBase58 string, logger *slog.Logger) (*SolanaSettlementService, error) {
	treasury, err := solana.PrivateKeyFromBase58(treasuryKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("falha ao carregar chave da tesouraria: %w", err)
	}
	return &SolanaSettlementService{
		RPCClient: rpc.New(rpcURL),
		Treasury:  treasury,
		Logger:    logger,
	}, nil
}

// TreasuryAddress retorna a chave pública da tesouraria.
func (s *SolanaSettlementService) TreasuryAddress() solana.PublicKey {
	return s.Treasury.PublicKey()
}

// BuildPayoutTransaction constrói e assina a transferência de lamports da tesouraria para `to`.
func (s *SolanaSettlementService) BuildPayoutTransaction(recentBlockhash solana.Hash, to solana.PublicKey, lamports uint64) (*solana.Transaction, error) {
	if to.IsZero() || lamports == 0 {
		return nil, errors.New("destino e valor são obrigatórios")
	}

	transferInstruction := system.NewTransferInstruction(
		lamports,
		s.Treasury.PublicKey(),
		to,
	).Build()

	// A tesouraria é a pagadora da taxa e a única assinante
	tx, err := solana.NewTransaction(
		[]solana.Instruction{transferInstruction},
		recentBlockhash,
		solana.TransactionPayer(s.Treasury.PublicKey()),
	)
	if err != nil {
		return nil, fmt.Errorf("falha ao criar transação de saque: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.Treasury.PublicKey()) {
			return &s.Treasury
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("falha ao assinar transação pela tesouraria: %w", err)
	}
	return tx, nil
}

// Payout envia `lamports` da tesouraria para `to` e retorna a assinatura da transação.
func (s *SolanaSettlementService) Payout(ctx context.Context, to solana.PublicKey, lamports uint64) (solana.Signature, error) {
	resp, err := s.RPCClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("falha ao obter blockhash: %w", err)
	}
	if resp == nil || resp.Value == nil {
		return solana.Signature{}, errors.New("resposta de blockhash vazia")
	}

	tx, err := s.BuildPayoutTransaction(resp.Value.Blockhash, to, lamports)
	if err != nil {
		return solana.Signature{}, err
	}

	txID, err := s.RPCClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("falha ao enviar transação de saque: %w", err)
	}
	s.Logger.Info("saque enviado", slog.String("signature", txID.String()), slog.String("to", to.String()), slog.Uint64("lamports", lamports))

	return txID, nil
}

// TreasuryBalance retorna o saldo on-chain da tesouraria.
func (s *SolanaSettlementService) TreasuryBalance(ctx context.Context) (uint64, error) {
	resp, err := s.RPCClient.GetBalance(ctx, s.Treasury.PublicKey(), rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("falha ao consultar saldo da tesouraria: %w", err)
	}
	return resp.Value, nil
}
