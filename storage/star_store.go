package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ferreirogomes/starnotary/models"

	"github.com/gagliardetto/solana-go"
	"github.com/jmoiron/sqlx"
)

type starRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Symbol    string    `db:"symbol"`
	Owner     string    `db:"owner"`
	CreatedAt time.Time `db:"created_at"`
}

type listingRow struct {
	StarID string `db:"star_id"`
	Seller string `db:"seller"`
	Price  int64  `db:"price"`
}

type approvalRow struct {
	StarID  string `db:"star_id"`
	Spender string `db:"spender"`
}

type accountRow struct {
	Owner   string `db:"owner"`
	Balance int64  `db:"balance"`
}

type eventRow struct {
	ID          string    `db:"id"`
	Kind        string    `db:"kind"`
	StarID      string    `db:"star_id"`
	StarIDB     string    `db:"star_id_b"`
	FromAccount string    `db:"from_account"`
	ToAccount   string    `db:"to_account"`
	Amount      int64     `db:"amount"`
	Refund      int64     `db:"refund"`
	Reference   string    `db:"reference"`
	CreatedAt   time.Time `db:"created_at"`
}

// Commit grava todas as linhas de uma transição em uma única transação SQL.
func (d *DB) Commit(ctx context.Context, t models.Transition) error {
	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("falha ao iniciar transação: %w", err)
	}
	defer tx.Rollback()

	for _, star := range t.Stars {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO stars (id, name, symbol, owner, created_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET owner = excluded.owner`),
			star.ID, star.Name, star.Symbol, star.Owner.String(), star.CreatedAt)
		if err != nil {
			return fmt.Errorf("falha ao salvar estrela %s: %w", star.ID, err)
		}
	}
	for _, id := range t.DeletedListings {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM listings WHERE star_id = ?`), id); err != nil {
			return fmt.Errorf("falha ao remover oferta %s: %w", id, err)
		}
	}
	for _, l := range t.Listings {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO listings (star_id, seller, price) VALUES (?, ?, ?)
			ON CONFLICT (star_id) DO UPDATE SET seller = excluded.seller, price = excluded.price`),
			l.StarID, l.Seller.String(), int64(l.Price))
		if err != nil {
			return fmt.Errorf("falha ao salvar oferta %s: %w", l.StarID, err)
		}
	}
	for _, id := range t.DeletedApprovals {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM approvals WHERE star_id = ?`), id); err != nil {
			return fmt.Errorf("falha ao remover aprovação %s: %w", id, err)
		}
	}
	for _, a := range t.Approvals {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO approvals (star_id, spender) VALUES (?, ?)
			ON CONFLICT (star_id) DO UPDATE SET spender = excluded.spender`),
			a.StarID, a.Spender.String())
		if err != nil {
			return fmt.Errorf("falha ao salvar aprovação %s: %w", a.StarID, err)
		}
	}
	for _, acc := range t.Accounts {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO accounts (owner, balance) VALUES (?, ?)
			ON CONFLICT (owner) DO UPDATE SET balance = excluded.balance`),
			acc.Owner.String(), int64(acc.Balance))
		if err != nil {
			return fmt.Errorf("falha ao salvar saldo de %s: %w", acc.Owner, err)
		}
	}

	if err := insertEvent(ctx, tx, t.Event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("falha ao confirmar transação: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sqlx.Tx, e models.Event) error {
	row := eventRow{
		ID:          e.ID,
		Kind:        string(e.Kind),
		StarID:      e.StarID,
		StarIDB:     e.StarIDB,
		FromAccount: keyString(e.From),
		ToAccount:   keyString(e.To),
		Amount:      int64(e.Amount),
		Refund:      int64(e.Refund),
		Reference:   e.Reference,
		CreatedAt:   e.CreatedAt,
	}
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO events (id, kind, star_id, star_id_b, from_account, to_account, amount, refund, reference, created_at)
		VALUES (:id, :kind, :star_id, :star_id_b, :from_account, :to_account, :amount, :refund, :reference, :created_at)`, row)
	if err != nil {
		return fmt.Errorf("falha ao registrar evento %s: %w", e.Kind, err)
	}
	return nil
}

// Load lê o estado completo do registro.
func (d *DB) Load(ctx context.Context) (models.Snapshot, error) {
	var snapshot models.Snapshot

	var stars []starRow
	if err := d.SelectContext(ctx, &stars, `SELECT id, name, symbol, owner, created_at FROM stars ORDER BY id`); err != nil {
		return snapshot, fmt.Errorf("falha ao carregar estrelas: %w", err)
	}
	for _, row := range stars {
		owner, err := solana.PublicKeyFromBase58(row.Owner)
		if err != nil {
			return snapshot, fmt.Errorf("dono inválido para estrela %s: %w", row.ID, err)
		}
		snapshot.Stars = append(snapshot.Stars, models.Star{
			ID:        row.ID,
			Name:      row.Name,
			Symbol:    row.Symbol,
			Owner:     owner,
			CreatedAt: row.CreatedAt,
		})
	}

	var listings []listingRow
	if err := d.SelectContext(ctx, &listings, `SELECT star_id, seller, price FROM listings ORDER BY star_id`); err != nil {
		return snapshot, fmt.Errorf("falha ao carregar ofertas: %w", err)
	}
	for _, row := range listings {
		seller, err := solana.PublicKeyFromBase58(row.Seller)
		if err != nil {
			return snapshot, fmt.Errorf("vendedor inválido para estrela %s: %w", row.StarID, err)
		}
		snapshot.Listings = append(snapshot.Listings, models.Listing{StarID: row.StarID, Seller: seller, Price: uint64(row.Price)})
	}

	var approvals []approvalRow
	if err := d.SelectContext(ctx, &approvals, `SELECT star_id, spender FROM approvals ORDER BY star_id`); err != nil {
		return snapshot, fmt.Errorf("falha ao carregar aprovações: %w", err)
	}
	for _, row := range approvals {
		spender, err := solana.PublicKeyFromBase58(row.Spender)
		if err != nil {
			return snapshot, fmt.Errorf("aprovado inválido para estrela %s: %w", row.StarID, err)
		}
		snapshot.Approvals = append(snapshot.Approvals, models.Approval{StarID: row.StarID, Spender: spender})
	}

	var accounts []accountRow
	if err := d.SelectContext(ctx, &accounts, `SELECT owner, balance FROM accounts ORDER BY owner`); err != nil {
		return snapshot, fmt.Errorf("falha ao carregar saldos: %w", err)
	}
	for _, row := range accounts {
		owner, err := solana.PublicKeyFromBase58(row.Owner)
		if err != nil {
			return snapshot, fmt.Errorf("conta inválida %s: %w", row.Owner, err)
		}
		snapshot.Accounts = append(snapshot.Accounts, models.Account{Owner: owner, Balance: uint64(row.Balance)})
	}

	if err := d.SelectContext(ctx, &snapshot.DepositRefs, d.Rebind(
		`SELECT reference FROM events WHERE kind = ? AND reference <> ''`), string(models.EventDeposit)); err != nil {
		return snapshot, fmt.Errorf("falha ao carregar referências de depósito: %w", err)
	}

	return snapshot, nil
}

// History retorna os eventos de uma estrela em ordem cronológica.
func (d *DB) History(ctx context.Context, starID string) ([]models.Event, error) {
	var rows []eventRow
	err := d.SelectContext(ctx, &rows, d.Rebind(`
		SELECT id, kind, star_id, star_id_b, from_account, to_account, amount, refund, reference, created_at
		FROM events WHERE star_id = ? OR star_id_b = ? ORDER BY created_at, id`), starID, starID)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar histórico da estrela %s: %w", starID, err)
	}

	events := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		e := models.Event{
			ID:        row.ID,
			Kind:      models.EventKind(row.Kind),
			StarID:    row.StarID,
			StarIDB:   row.StarIDB,
			Amount:    uint64(row.Amount),
			Refund:    uint64(row.Refund),
			Reference: row.Reference,
			CreatedAt: row.CreatedAt,
		}
		if e.From, err = parseKey(row.FromAccount); err != nil {
			return nil, err
		}
		if e.To, err = parseKey(row.ToAccount); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// keyString grava a chave zero como texto vazio.
func keyString(k solana.PublicKey) string {
	if k.IsZero() {
		return ""
	}
	return k.String()
}

func parseKey(s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, nil
	}
	k, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("chave inválida %q: %w", s, err)
	}
	return k, nil
}
