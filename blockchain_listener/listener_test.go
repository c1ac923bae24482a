package blockchain_listener_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ferreirogomes/starnotary/blockchain_listener"
	"github.com/ferreirogomes/starnotary/logs"
	"github.com/ferreirogomes/starnotary/services"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFetcher é uma implementação mock do blockchain_listener.TransactionFetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) GetTransaction(ctx context.Context, txSig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	args := m.Called(ctx, txSig, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rpc.GetTransactionResult), args.Error(1)
}

// MockSink é uma implementação mock do blockchain_listener.DepositSink
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Deposit(ctx context.Context, account solana.PublicKey, amount uint64, ref string) (uint64, error) {
	args := m.Called(ctx, account, amount, ref)
	return args.Get(0).(uint64), args.Error(1)
}

type transfer struct {
	from     solana.PrivateKey
	to       solana.PublicKey
	lamports uint64
}

// signedTransfers monta uma transação assinada com uma instrução System.Transfer por item.
func signedTransfers(t *testing.T, transfers ...transfer) *solana.Transaction {
	t.Helper()
	keys := map[solana.PublicKey]solana.PrivateKey{}
	instructions := make([]solana.Instruction, 0, len(transfers))
	for _, tr := range transfers {
		keys[tr.from.PublicKey()] = tr.from
		instructions = append(instructions, system.NewTransferInstruction(tr.lamports, tr.from.PublicKey(), tr.to).Build())
	}

	tx, err := solana.NewTransaction(instructions, solana.Hash{4}, solana.TransactionPayer(transfers[0].from.PublicKey()))
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if k, ok := keys[key]; ok {
			return &k
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}

func envelope(t *testing.T, tx *solana.Transaction) *rpc.TransactionResultEnvelope {
	t.Helper()
	encoded, err := tx.ToBase64()
	require.NoError(t, err)

	var env rpc.TransactionResultEnvelope
	require.NoError(t, env.UnmarshalJSON([]byte(fmt.Sprintf(`[%q,"base64"]`, encoded))))
	return &env
}

func newKeyPair(t *testing.T) solana.PrivateKey {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k
}

func TestExtractDeposits(t *testing.T) {
	treasury := newKeyPair(t)
	alice, bob := newKeyPair(t), newKeyPair(t)
	other := solana.NewWallet().PublicKey()

	tx := signedTransfers(t,
		transfer{from: alice, to: treasury.PublicKey(), lamports: 1000},
		transfer{from: bob, to: other, lamports: 500},
		transfer{from: bob, to: treasury.PublicKey(), lamports: 2000},
	)

	deposits, err := blockchain_listener.ExtractDeposits(tx, treasury.PublicKey())
	require.NoError(t, err)
	require.Len(t, deposits, 2)
	assert.Equal(t, blockchain_listener.Deposit{From: alice.PublicKey(), Lamports: 1000}, deposits[0])
	assert.Equal(t, blockchain_listener.Deposit{From: bob.PublicKey(), Lamports: 2000}, deposits[1])
}

func TestExtractDepositsSkipsZeroLamports(t *testing.T) {
	treasury := newKeyPair(t)
	alice, bob := newKeyPair(t), newKeyPair(t)

	tx := signedTransfers(t,
		transfer{from: alice, to: treasury.PublicKey(), lamports: 0},
		transfer{from: bob, to: treasury.PublicKey(), lamports: 5000},
	)

	deposits, err := blockchain_listener.ExtractDeposits(tx, treasury.PublicKey())
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, blockchain_listener.Deposit{From: bob.PublicKey(), Lamports: 5000}, deposits[0])
}

func TestExtractDepositsIgnoresTreasuryPayouts(t *testing.T) {
	treasury := newKeyPair(t)

	tx := signedTransfers(t, transfer{from: treasury, to: solana.NewWallet().PublicKey(), lamports: 1000})

	deposits, err := blockchain_listener.ExtractDeposits(tx, treasury.PublicKey())
	require.NoError(t, err)
	assert.Empty(t, deposits)
}

func newListener(fetcher *MockFetcher, sink *MockSink, treasury solana.PublicKey) *blockchain_listener.BlockchainListener {
	return &blockchain_listener.BlockchainListener{
		RPCClient: fetcher,
		Treasury:  treasury,
		Sink:      sink,
		Logger:    logs.Discard(),
	}
}

// TestProcessTransaction verifica o crédito de cada depósito com referência única
func TestProcessTransaction(t *testing.T) {
	treasury := newKeyPair(t)
	alice, bob := newKeyPair(t), newKeyPair(t)
	tx := signedTransfers(t,
		transfer{from: alice, to: treasury.PublicKey(), lamports: 1000},
		transfer{from: bob, to: treasury.PublicKey(), lamports: 2000},
	)
	sig := tx.Signatures[0]

	fetcher, sink := new(MockFetcher), new(MockSink)
	fetcher.On("GetTransaction", mock.Anything, sig, mock.Anything).Return(&rpc.GetTransactionResult{
		Transaction: envelope(t, tx),
		Meta:        &rpc.TransactionMeta{},
	}, nil)
	sink.On("Deposit", mock.Anything, alice.PublicKey(), uint64(1000), sig.String()).Return(uint64(1000), nil)
	sink.On("Deposit", mock.Anything, bob.PublicKey(), uint64(2000), sig.String()+":1").Return(uint64(2000), nil)

	credited, err := newListener(fetcher, sink, treasury.PublicKey()).ProcessTransaction(context.Background(), sig)
	require.NoError(t, err)
	assert.Equal(t, 2, credited)
	sink.AssertExpectations(t)
}

func TestProcessTransactionAlreadyCredited(t *testing.T) {
	treasury := newKeyPair(t)
	alice := newKeyPair(t)
	tx := signedTransfers(t, transfer{from: alice, to: treasury.PublicKey(), lamports: 1000})
	sig := tx.Signatures[0]

	fetcher, sink := new(MockFetcher), new(MockSink)
	fetcher.On("GetTransaction", mock.Anything, sig, mock.Anything).Return(&rpc.GetTransactionResult{
		Transaction: envelope(t, tx),
	}, nil)
	sink.On("Deposit", mock.Anything, alice.PublicKey(), uint64(1000), sig.String()).
		Return(uint64(1000), fmt.Errorf("deposit: %w", services.ErrAlreadyCredited))

	credited, err := newListener(fetcher, sink, treasury.PublicKey()).ProcessTransaction(context.Background(), sig)
	require.NoError(t, err)
	assert.Equal(t, 0, credited)
}

// TestProcessTransactionZeroLamportLeg usa o registro real: a perna de 0 lamports
// não impede o crédito do depósito seguinte.
func TestProcessTransactionZeroLamportLeg(t *testing.T) {
	treasury := newKeyPair(t)
	alice, bob := newKeyPair(t), newKeyPair(t)
	tx := signedTransfers(t,
		transfer{from: alice, to: treasury.PublicKey(), lamports: 0},
		transfer{from: bob, to: treasury.PublicKey(), lamports: 5000},
	)
	sig := tx.Signatures[0]

	fetcher := new(MockFetcher)
	fetcher.On("GetTransaction", mock.Anything, sig, mock.Anything).Return(&rpc.GetTransactionResult{
		Transaction: envelope(t, tx),
	}, nil)
	registry := services.NewStarRegistry("My STAR COLLECTIONS", "SYT", nil)
	listener := &blockchain_listener.BlockchainListener{
		RPCClient: fetcher,
		Treasury:  treasury.PublicKey(),
		Sink:      registry,
		Logger:    logs.Discard(),
	}

	credited, err := listener.ProcessTransaction(context.Background(), sig)
	require.NoError(t, err)
	assert.Equal(t, 1, credited)
	assert.Equal(t, uint64(5000), registry.BalanceOf(bob.PublicKey()))
	assert.Equal(t, uint64(0), registry.BalanceOf(alice.PublicKey()))
}

func TestProcessTransactionFailedOnChain(t *testing.T) {
	treasury := newKeyPair(t)
	tx := signedTransfers(t, transfer{from: newKeyPair(t), to: treasury.PublicKey(), lamports: 1000})
	sig := tx.Signatures[0]

	fetcher, sink := new(MockFetcher), new(MockSink)
	fetcher.On("GetTransaction", mock.Anything, sig, mock.Anything).Return(&rpc.GetTransactionResult{
		Transaction: envelope(t, tx),
		Meta:        &rpc.TransactionMeta{Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
	}, nil)

	credited, err := newListener(fetcher, sink, treasury.PublicKey()).ProcessTransaction(context.Background(), sig)
	require.NoError(t, err)
	assert.Equal(t, 0, credited)
	sink.AssertNotCalled(t, "Deposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessTransactionFetchError(t *testing.T) {
	fetcher, sink := new(MockFetcher), new(MockSink)
	fetcher.On("GetTransaction", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("not found"))

	_, err := newListener(fetcher, sink, solana.NewWallet().PublicKey()).ProcessTransaction(context.Background(), solana.Signature{1})
	assert.Error(t, err)
}

func TestProcessTransactionSinkError(t *testing.T) {
	treasury := newKeyPair(t)
	alice := newKeyPair(t)
	tx := signedTransfers(t, transfer{from: alice, to: treasury.PublicKey(), lamports: 1000})
	sig := tx.Signatures[0]

	fetcher, sink := new(MockFetcher), new(MockSink)
	fetcher.On("GetTransaction", mock.Anything, sig, mock.Anything).Return(&rpc.GetTransactionResult{
		Transaction: envelope(t, tx),
	}, nil)
	sink.On("Deposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(uint64(0), errors.New("disk full"))

	_, err := newListener(fetcher, sink, treasury.PublicKey()).ProcessTransaction(context.Background(), sig)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestProcessTransactionContinuesAfterSinkError(t *testing.T) {
	treasury := newKeyPair(t)
	alice, bob := newKeyPair(t), newKeyPair(t)
	tx := signedTransfers(t,
		transfer{from: alice, to: treasury.PublicKey(), lamports: 1000},
		transfer{from: bob, to: treasury.PublicKey(), lamports: 2000},
	)
	sig := tx.Signatures[0]

	fetcher, sink := new(MockFetcher), new(MockSink)
	fetcher.On("GetTransaction", mock.Anything, sig, mock.Anything).Return(&rpc.GetTransactionResult{
		Transaction: envelope(t, tx),
	}, nil)
	sink.On("Deposit", mock.Anything, alice.PublicKey(), uint64(1000), sig.String()).Return(uint64(0), errors.New("disk full"))
	sink.On("Deposit", mock.Anything, bob.PublicKey(), uint64(2000), sig.String()+":1").Return(uint64(2000), nil)

	credited, err := newListener(fetcher, sink, treasury.PublicKey()).ProcessTransaction(context.Background(), sig)
	assert.Error(t, err)
	assert.Equal(t, 1, credited)
	sink.AssertExpectations(t)
}
