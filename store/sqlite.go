package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/gridmarket/paydriver/types"
)

var _ Ledger = (*SQLite)(nil)

// SQLite is the sqlite-backed ledger implementation.
type SQLite struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	tx_id      TEXT PRIMARY KEY,
	network    TEXT NOT NULL,
	kind       INTEGER NOT NULL,
	sender     TEXT NOT NULL,
	nonce      INTEGER NOT NULL,
	encoded    BLOB NOT NULL,
	tx_hash    TEXT,
	status     INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(network, status);
CREATE INDEX IF NOT EXISTS idx_transactions_hash ON transactions(tx_hash);
CREATE INDEX IF NOT EXISTS idx_transactions_nonce ON transactions(sender, network);

CREATE TABLE IF NOT EXISTS payments (
	order_id   TEXT PRIMARY KEY,
	sender     TEXT NOT NULL,
	recipient  TEXT NOT NULL,
	amount     TEXT NOT NULL,
	network    TEXT NOT NULL,
	due_by     TIMESTAMP NOT NULL,
	status     INTEGER NOT NULL,
	tx_id      TEXT REFERENCES transactions(tx_id),
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payments_pending ON payments(sender, network, status);
CREATE INDEX IF NOT EXISTS idx_payments_tx ON payments(tx_id);
`

// Open opens (and if necessary creates) the ledger database at path.
// ":memory:" is accepted for tests.
func Open(path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger db: %w", err)
	}
	// sqlite handles one writer at a time; a single connection also keeps
	// ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CreatePayment(ctx context.Context, p *types.Payment) error {
	if p.Status == 0 {
		p.Status = types.PaymentPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (order_id, sender, recipient, amount, network, due_by, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OrderID, p.Sender.Hex(), p.Recipient.Hex(), p.Amount.String(),
		string(p.Network), p.DueBy.UTC(), int(p.Status), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment %s: %w", p.OrderID, err)
	}
	return nil
}

func (s *SQLite) Payment(ctx context.Context, orderID string) (*types.Payment, error) {
	row := s.db.QueryRowContext(ctx,
		paymentColumns+` WHERE order_id = ?`, orderID)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLite) PendingPayments(ctx context.Context, sender common.Address, network types.Network) ([]types.Payment, error) {
	return s.queryPayments(ctx,
		paymentColumns+` WHERE sender = ? AND network = ? AND status = ? ORDER BY created_at ASC, order_id ASC`,
		sender.Hex(), string(network), int(types.PaymentPending))
}

func (s *SQLite) UnsentTransactions(ctx context.Context, network types.Network) ([]types.Transaction, error) {
	return s.queryTransactions(ctx,
		txColumns+` WHERE network = ? AND status = ? ORDER BY nonce ASC, created_at ASC`,
		string(network), int(types.TxUnsent))
}

func (s *SQLite) UnconfirmedTransactions(ctx context.Context, network types.Network) ([]types.Transaction, error) {
	return s.queryTransactions(ctx,
		txColumns+` WHERE network = ? AND status = ? ORDER BY nonce ASC, created_at ASC`,
		string(network), int(types.TxSubmitted))
}

func (s *SQLite) RecordTransaction(ctx context.Context, tx *types.Transaction) (string, error) {
	if tx.TxID == "" {
		tx.TxID = uuid.NewString()
	}
	if tx.Status == 0 {
		tx.Status = types.TxUnsent
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	var hash interface{}
	if tx.TxHash != nil {
		hash = tx.TxHash.Hex()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (tx_id, network, kind, sender, nonce, encoded, tx_hash, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.TxID, string(tx.Network), int(tx.Kind), tx.Sender.Hex(),
		tx.Nonce, tx.Encoded, hash, int(tx.Status), tx.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to record transaction: %w", err)
	}
	return tx.TxID, nil
}

func (s *SQLite) BindPayment(ctx context.Context, txID, orderID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET tx_id = ?, status = ? WHERE order_id = ? AND status = ?`,
		txID, int(types.PaymentSent), orderID, int(types.PaymentPending))
	if err != nil {
		return fmt.Errorf("failed to bind payment %s: %w", orderID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.Payment(ctx, orderID); err != nil {
			return err
		}
		return fmt.Errorf("bind payment %s to tx %s: %w", orderID, txID, ErrInconsistentState)
	}
	return nil
}

func (s *SQLite) MarkSubmitted(ctx context.Context, txID string, txHash common.Hash) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbtx.Rollback()

	var status int
	var stored sql.NullString
	err = dbtx.QueryRowContext(ctx,
		`SELECT status, tx_hash FROM transactions WHERE tx_id = ?`, txID).Scan(&status, &stored)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if types.TxStatus(status) != types.TxUnsent {
		// Idempotent when re-submitting the exact same broadcast result.
		if stored.Valid && stored.String == txHash.Hex() {
			return nil
		}
		return fmt.Errorf("mark submitted tx %s (status %s): %w",
			txID, types.TxStatus(status), ErrInconsistentState)
	}

	if _, err := dbtx.ExecContext(ctx,
		`UPDATE transactions SET status = ?, tx_hash = ? WHERE tx_id = ?`,
		int(types.TxSubmitted), txHash.Hex(), txID); err != nil {
		return err
	}
	return dbtx.Commit()
}

func (s *SQLite) ConfirmSuccess(ctx context.Context, txID string) ([]types.Payment, error) {
	return s.confirm(ctx, txID, types.TxConfirmedSuccess)
}

func (s *SQLite) ConfirmFailure(ctx context.Context, txID string) ([]types.Payment, error) {
	return s.confirm(ctx, txID, types.TxConfirmedFailure)
}

func (s *SQLite) confirm(ctx context.Context, txID string, terminal types.TxStatus) ([]types.Payment, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback()

	res, err := dbtx.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE tx_id = ? AND status = ?`,
		int(terminal), txID, int(types.TxSubmitted))
	if err != nil {
		return nil, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var status int
		err := dbtx.QueryRowContext(ctx,
			`SELECT status FROM transactions WHERE tx_id = ?`, txID).Scan(&status)
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		if types.TxStatus(status).Terminal() {
			// Already confirmed, nothing further to settle.
			return nil, nil
		}
		return nil, fmt.Errorf("confirm tx %s (status %s): %w",
			txID, types.TxStatus(status), ErrInconsistentState)
	}

	if terminal == types.TxConfirmedSuccess {
		if _, err := dbtx.ExecContext(ctx,
			`UPDATE payments SET status = ? WHERE tx_id = ? AND status = ?`,
			int(types.PaymentConfirmed), txID, int(types.PaymentSent)); err != nil {
			return nil, err
		}
	}

	payments, err := queryPaymentsTx(ctx, dbtx,
		paymentColumns+` WHERE tx_id = ? ORDER BY created_at ASC, order_id ASC`, txID)
	if err != nil {
		return nil, err
	}
	if err := dbtx.Commit(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *SQLite) MarkPaymentFailed(ctx context.Context, orderID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE order_id = ? AND status IN (?, ?)`,
		int(types.PaymentFailed), orderID,
		int(types.PaymentPending), int(types.PaymentSent))
	if err != nil {
		return fmt.Errorf("failed to fail payment %s: %w", orderID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		p, err := s.Payment(ctx, orderID)
		if err != nil {
			return err
		}
		if p.Status == types.PaymentFailed {
			return nil
		}
		return fmt.Errorf("fail payment %s (status %s): %w",
			orderID, p.Status, ErrInconsistentState)
	}
	return nil
}

func (s *SQLite) PaymentsForTransaction(ctx context.Context, txID string) ([]types.Payment, error) {
	return s.queryPayments(ctx,
		paymentColumns+` WHERE tx_id = ? ORDER BY created_at ASC, order_id ASC`, txID)
}

func (s *SQLite) FirstPaymentForTransaction(ctx context.Context, txHash common.Hash) (*types.Payment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT p.order_id, p.sender, p.recipient, p.amount, p.network, p.due_by, p.status, p.tx_id, p.created_at
		 FROM payments p
		 JOIN transactions t ON p.tx_id = t.tx_id
		 WHERE t.tx_hash = ?
		 ORDER BY p.created_at ASC, p.order_id ASC
		 LIMIT 1`, txHash.Hex())
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLite) MaxNonce(ctx context.Context, sender common.Address, network types.Network) (uint64, bool, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(nonce) FROM transactions WHERE sender = ? AND network = ?`,
		sender.Hex(), string(network)).Scan(&max)
	if err != nil {
		return 0, false, err
	}
	if !max.Valid {
		return 0, false, nil
	}
	return uint64(max.Int64), true, nil
}

const paymentColumns = `SELECT order_id, sender, recipient, amount, network, due_by, status, tx_id, created_at FROM payments`

const txColumns = `SELECT tx_id, network, kind, sender, nonce, encoded, tx_hash, status, created_at FROM transactions`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*types.Payment, error) {
	var p types.Payment
	var sender, recipient, amount, network string
	var txID sql.NullString
	var status int
	if err := row.Scan(&p.OrderID, &sender, &recipient, &amount, &network,
		&p.DueBy, &status, &txID, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Sender = common.HexToAddress(sender)
	p.Recipient = common.HexToAddress(recipient)
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount for payment %s: %w", p.OrderID, err)
	}
	p.Amount = amt
	p.Network = types.Network(network)
	p.Status = types.PaymentStatus(status)
	if txID.Valid {
		p.TxID = txID.String
	}
	return &p, nil
}

func scanTransaction(row rowScanner) (*types.Transaction, error) {
	var tx types.Transaction
	var network, sender string
	var hash sql.NullString
	var kind, status int
	if err := row.Scan(&tx.TxID, &network, &kind, &sender, &tx.Nonce,
		&tx.Encoded, &hash, &status, &tx.CreatedAt); err != nil {
		return nil, err
	}
	tx.Network = types.Network(network)
	tx.Kind = types.TxKind(kind)
	tx.Sender = common.HexToAddress(sender)
	tx.Status = types.TxStatus(status)
	if hash.Valid {
		h := common.HexToHash(hash.String)
		tx.TxHash = &h
	}
	return &tx, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (s *SQLite) queryPayments(ctx context.Context, query string, args ...interface{}) ([]types.Payment, error) {
	return queryPaymentsTx(ctx, s.db, query, args...)
}

func queryPaymentsTx(ctx context.Context, q queryer, query string, args ...interface{}) ([]types.Payment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *SQLite) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]types.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}
