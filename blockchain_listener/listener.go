package blockchain_listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ferreirogomes/starnotary/services"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws" // Para WebSockets
)

// DepositSink recebe os depósitos detectados on-chain.
type DepositSink interface {
	Deposit(ctx context.Context, account solana.PublicKey, amount uint64, ref string) (uint64, error)
}

// TransactionFetcher busca transações confirmadas (subconjunto do rpc.Client).
type TransactionFetcher interface {
	GetTransaction(ctx context.Context, txSig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
}

// Deposit é uma transferência de SOL para a tesouraria.
type Deposit struct {
	From     solana.PublicKey
	Lamports uint64
}

// BlockchainListener escuta transferências para a tesouraria e credita os saldos internos.
type BlockchainListener struct {
	RPCClient  TransactionFetcher
	WSURL      string
	Treasury   solana.PublicKey
	Sink       DepositSink
	Logger     *slog.Logger
	RetryDelay time.Duration
}

// NewBlockchainListener cria uma nova instância do listener.
func NewBlockchainListener(rpcURL, wsURL string, treasury solana.PublicKey, sink DepositSink, logger *slog.Logger) *BlockchainListener {
	return &BlockchainListener{
		RPCClient:  rpc.New(rpcURL),
		WSURL:      wsURL,
		Treasury:   treasury,
		Sink:       sink,
		Logger:     logger,
		RetryDelay: 5 * time.Second,
	}
}

// StartListening escuta até o contexto ser cancelado, reconectando após falhas.
func (l *BlockchainListener) StartListening(ctx context.Context) error {
	l.Logger.Info("iniciando listener da blockchain", slog.String("treasury", l.Treasury.String()))
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.Logger.Warn("subscrição encerrada, reconectando", slog.Any("error", err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.RetryDelay): // Espera antes de tentar novamente
		}
	}
}

func (l *BlockchainListener) listen(ctx context.Context) error {
	wsClient, err := ws.Connect(ctx, l.WSURL)
	if err != nil {
		return fmt.Errorf("falha ao conectar ao WebSocket Solana: %w", err)
	}
	defer wsClient.Close()

	sub, err := wsClient.LogsSubscribeMentions(l.Treasury, rpc.CommitmentFinalized)
	if err != nil {
		return fmt.Errorf("falha ao subscrever logs da tesouraria: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		got, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		// Apenas processa transações bem-sucedidas
		if got.Value.Err != nil {
			l.Logger.Debug("transação falhou, ignorando", slog.String("signature", got.Value.Signature.String()))
			continue
		}
		if _, err := l.ProcessTransaction(ctx, got.Value.Signature); err != nil {
			l.Logger.Error("falha ao processar transação",
				slog.String("signature", got.Value.Signature.String()),
				slog.Any("error", err),
			)
		}
	}
}

// ProcessTransaction busca a transação e credita os depósitos encontrados.
// Retorna quantos depósitos foram creditados.
func (l *BlockchainListener) ProcessTransaction(ctx context.Context, signature solana.Signature) (int, error) {
	maxVersion := uint64(0)
	txResp, err := l.RPCClient.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return 0, fmt.Errorf("falha ao obter detalhes da transação: %w", err)
	}
	if txResp == nil || txResp.Transaction == nil {
		return 0, errors.New("detalhes da transação vazios")
	}
	if txResp.Meta != nil && txResp.Meta.Err != nil {
		return 0, nil
	}

	tx, err := txResp.Transaction.GetTransaction()
	if err != nil {
		return 0, fmt.Errorf("falha ao decodificar transação: %w", err)
	}

	deposits, err := ExtractDeposits(tx, l.Treasury)
	if err != nil {
		return 0, err
	}

	credited := 0
	var errs []error
	for i, d := range deposits {
		ref := signature.String()
		if i > 0 {
			ref = fmt.Sprintf("%s:%d", ref, i)
		}
		balance, err := l.Sink.Deposit(ctx, d.From, d.Lamports, ref)
		if errors.Is(err, services.ErrAlreadyCredited) {
			l.Logger.Debug("depósito já creditado", slog.String("ref", ref))
			continue
		}
		if err != nil {
			// Os demais depósitos da transação ainda são creditados
			errs = append(errs, fmt.Errorf("falha ao creditar depósito %s: %w", ref, err))
			continue
		}
		credited++
		l.Logger.Info("depósito creditado",
			slog.String("ref", ref),
			slog.String("from", d.From.String()),
			slog.Uint64("lamports", d.Lamports),
			slog.Uint64("balance", balance),
		)
	}
	return credited, errors.Join(errs...)
}

// ExtractDeposits encontra as instruções system.Transfer com valor positivo cujo destino é a tesouraria.
func ExtractDeposits(tx *solana.Transaction, treasury solana.PublicKey) ([]Deposit, error) {
	var deposits []Deposit
	for _, ci := range tx.Message.Instructions {
		programID, err := tx.ResolveProgramIDIndex(ci.ProgramIDIndex)
		if err != nil {
			return nil, fmt.Errorf("programa inválido na transação: %w", err)
		}
		if !programID.Equals(system.ProgramID) {
			continue
		}

		accounts, err := ci.ResolveInstructionAccounts(&tx.Message)
		if err != nil {
			return nil, fmt.Errorf("falha ao resolver contas da instrução: %w", err)
		}
		inst, err := system.DecodeInstruction(accounts, ci.Data)
		if err != nil {
			return nil, fmt.Errorf("falha ao decodificar instrução System: %w", err)
		}

		transfer, ok := inst.Impl.(*system.Transfer)
		// Transferências de 0 lamports são válidas on-chain, mas não creditam nada
		if !ok || transfer.Lamports == nil || *transfer.Lamports == 0 {
			continue
		}
		recipient := transfer.GetRecipientAccount()
		funding := transfer.GetFundingAccount()
		if recipient == nil || funding == nil || !recipient.PublicKey.Equals(treasury) {
			continue
		}
		// Transferências da própria tesouraria (saques) não são depósitos
		if funding.PublicKey.Equals(treasury) {
			continue
		}
		deposits = append(deposits, Deposit{From: funding.PublicKey, Lamports: *transfer.Lamports})
	}
	return deposits, nil
}
