package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ferreirogomes/starnotary/models"

	"github.com/gagliardetto/solana-go"
)

// ErrSettlementDisabled indica que não há tesouraria configurada para saques.
var ErrSettlementDisabled = errors.New("liquidação on-chain desativada")

// Settlement paga lamports on-chain a partir da tesouraria.
type Settlement interface {
	Payout(ctx context.Context, to solana.PublicKey, lamports uint64) (solana.Signature, error)
}

// SnapshotLoader carrega o estado persistido do registro.
type SnapshotLoader interface {
	Load(ctx context.Context) (models.Snapshot, error)
}

// NotaryService orquestra o registro de estrelas e a liquidação na Solana.
type NotaryService struct {
	Registry   *StarRegistry
	Settlement Settlement
	Logger     *slog.Logger
}

// NewNotaryService cria o serviço. settlement pode ser nil.
func NewNotaryService(registry *StarRegistry, settlement Settlement, logger *slog.Logger) *NotaryService {
	return &NotaryService{Registry: registry, Settlement: settlement, Logger: logger}
}

// Bootstrap restaura o registro a partir do storage.
func (s *NotaryService) Bootstrap(ctx context.Context, loader SnapshotLoader) error {
	snapshot, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("falha ao carregar estado do registro: %w", err)
	}
	s.Registry.Restore(snapshot)
	s.Logger.Info("registro restaurado",
		slog.Int("stars", len(snapshot.Stars)),
		slog.Int("listings", len(snapshot.Listings)),
		slog.Int("accounts", len(snapshot.Accounts)),
	)
	return nil
}

// Withdraw debita o saldo interno e paga o valor on-chain.
// Se o pagamento falhar, o valor é creditado de volta.
func (s *NotaryService) Withdraw(ctx context.Context, account solana.PublicKey, amount uint64) (models.Withdrawal, error) {
	if s.Settlement == nil {
		return models.Withdrawal{}, ErrSettlementDisabled
	}

	balance, err := s.Registry.Withdraw(ctx, account, amount)
	if err != nil {
		return models.Withdrawal{}, err
	}

	txID, err := s.Settlement.Payout(ctx, account, amount)
	if err != nil {
		s.Logger.Error("saque falhou, estornando saldo",
			slog.String("account", account.String()),
			slog.Uint64("amount", amount),
			slog.Any("error", err),
		)
		if _, refundErr := s.Registry.Deposit(ctx, account, amount, ""); refundErr != nil {
			// Saldo debitado sem pagamento: precisa de reconciliação manual.
			s.Logger.Error("ERRO: falha ao estornar saque",
				slog.String("account", account.String()),
				slog.Uint64("amount", amount),
				slog.Any("error", refundErr),
			)
		}
		return models.Withdrawal{}, fmt.Errorf("falha ao pagar saque on-chain: %w", err)
	}

	return models.Withdrawal{
		Owner:     account,
		Amount:    amount,
		Balance:   balance,
		Signature: txID.String(),
	}, nil
}
