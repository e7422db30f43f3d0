package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements Store against PostgreSQL, standing in for the
// "document store with atomic find-and-update-many" abstraction of §4.1:
// transactions plus SELECT ... FOR UPDATE SKIP LOCKED give the same
// atomicity guarantee a multi-document transaction would.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-connected *sql.DB. connect()/disconnect()
// of §4.1 map onto the caller's own db lifecycle plus EnsureSchema.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the mixer_wallets table and its indexes if absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *PostgresStore) InsertWallets(ctx context.Context, wallets []StoredWallet) error {
	if len(wallets) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("wallet: begin insert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mixer_wallets
			(public_key, private_key_cipher, status, is_active, balance,
			 created_at, usage_count, transaction_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("wallet: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, w := range wallets {
		historyJSON, err := json.Marshal(w.TransactionHistory)
		if err != nil {
			return fmt.Errorf("wallet: marshal history: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, w.PublicKey, w.PrivateKeyCipher, w.Status, w.IsActive,
			w.Balance, w.CreatedAt, w.UsageCount, historyJSON); err != nil {
			return fmt.Errorf("wallet: insert %s: %w", w.PublicKey, err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) ListAvailable(ctx context.Context, n int) ([]StoredWallet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT public_key, private_key_cipher, status, is_active, balance, created_at,
		       last_used, usage_count, transaction_history, error_message, error_timestamp
		FROM mixer_wallets
		WHERE status = $1 AND is_active = TRUE
		ORDER BY usage_count ASC, last_used ASC NULLS FIRST
		LIMIT $2
	`, StatusAvailable, n)
	if err != nil {
		return nil, fmt.Errorf("wallet: list available: %w", err)
	}
	defer rows.Close()
	return scanWallets(rows)
}

// ListAll returns every wallet regardless of status, oldest first.
func (s *PostgresStore) ListAll(ctx context.Context) ([]StoredWallet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT public_key, private_key_cipher, status, is_active, balance, created_at,
		       last_used, usage_count, transaction_history, error_message, error_timestamp
		FROM mixer_wallets
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("wallet: list all: %w", err)
	}
	defer rows.Close()
	return scanWallets(rows)
}

// ReserveForMixing implements the atomic reservation of §4.1. It selects up
// to candidateLimit available candidates with FOR UPDATE SKIP LOCKED so
// concurrent reservations never see the same row, validates each via the
// supplied predicate, transitions validated rows to in_use and failed rows
// to error within the same transaction, and returns the validated set.
func (s *PostgresStore) ReserveForMixing(ctx context.Context, candidateLimit int, exclude []string, validate func(StoredWallet) bool) ([]StoredWallet, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("wallet: begin reserve tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT public_key, private_key_cipher, status, is_active, balance, created_at,
		       last_used, usage_count, transaction_history, error_message, error_timestamp
		FROM mixer_wallets
		WHERE status = $1 AND is_active = TRUE AND NOT (public_key = ANY($2))
		ORDER BY usage_count ASC, last_used ASC NULLS FIRST
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, StatusAvailable, pq.Array(exclude), candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("wallet: select candidates: %w", err)
	}
	candidates, err := scanWallets(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	var validated, failed []StoredWallet
	for _, c := range candidates {
		if validate(c) {
			validated = append(validated, c)
		} else {
			failed = append(failed, c)
		}
	}

	now := nowUTC()
	for _, w := range validated {
		if _, err := tx.ExecContext(ctx, `
			UPDATE mixer_wallets
			SET status = $1, last_used = $2, usage_count = usage_count + 1
			WHERE public_key = $3
		`, StatusInUse, now, w.PublicKey); err != nil {
			return nil, fmt.Errorf("wallet: mark in_use %s: %w", w.PublicKey, err)
		}
	}
	for _, w := range failed {
		if _, err := tx.ExecContext(ctx, `
			UPDATE mixer_wallets
			SET status = $1, error_message = $2, error_timestamp = $3
			WHERE public_key = $4
		`, StatusError, "trial decryption failed during reservation", now, w.PublicKey); err != nil {
			return nil, fmt.Errorf("wallet: mark error %s: %w", w.PublicKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("wallet: commit reserve tx: %w", err)
	}

	for i := range validated {
		validated[i].Status = StatusInUse
		validated[i].UsageCount++
		t := now
		validated[i].LastUsed = &t
	}
	return validated, nil
}

func (s *PostgresStore) ReleaseWallets(ctx context.Context, publicKeys []string) error {
	if len(publicKeys) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE mixer_wallets SET status = $1 WHERE public_key = ANY($2)
	`, StatusAvailable, pq.Array(publicKeys))
	if err != nil {
		return fmt.Errorf("wallet: release: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateBalance(ctx context.Context, publicKey string, balance int64) error {
	status := StatusAvailable
	if balance == 0 {
		status = StatusDepleted
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE mixer_wallets SET balance = $1, status = $2 WHERE public_key = $3
	`, balance, status, publicKey)
	if err != nil {
		return fmt.Errorf("wallet: update balance %s: %w", publicKey, err)
	}
	return nil
}

func (s *PostgresStore) RecordTransaction(ctx context.Context, publicKey string, entry HistoryEntry) error {
	entryJSON, err := json.Marshal([]HistoryEntry{entry})
	if err != nil {
		return fmt.Errorf("wallet: marshal history entry: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE mixer_wallets
		SET transaction_history = transaction_history || $1::jsonb
		WHERE public_key = $2
	`, string(entryJSON), publicKey)
	if err != nil {
		return fmt.Errorf("wallet: record transaction %s: %w", publicKey, err)
	}
	return nil
}

func (s *PostgresStore) MarkError(ctx context.Context, publicKey string, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mixer_wallets SET status = $1, error_message = $2, error_timestamp = $3 WHERE public_key = $4
	`, StatusError, message, nowUTC(), publicKey)
	if err != nil {
		return fmt.Errorf("wallet: mark error %s: %w", publicKey, err)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(balance), 0) FROM mixer_wallets GROUP BY status
	`)
	if err != nil {
		return Stats{}, fmt.Errorf("wallet: stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		var balance int64
		if err := rows.Scan(&status, &count, &balance); err != nil {
			return Stats{}, fmt.Errorf("wallet: scan stats row: %w", err)
		}
		stats.TotalBalance += balance
		switch Status(status) {
		case StatusAvailable:
			stats.Available = count
		case StatusInUse:
			stats.InUse = count
		case StatusDepleted:
			stats.Depleted = count
		case StatusError:
			stats.Error = count
		}
	}
	return stats, rows.Err()
}

func (s *PostgresStore) Cleanup(ctx context.Context, filter CleanupFilter) (int64, error) {
	var clauses []string
	var args []interface{}
	argN := 1

	if filter.OlderThanDays > 0 {
		clauses = append(clauses, fmt.Sprintf("created_at < now() - ($%d || ' days')::interval", argN))
		args = append(args, filter.OlderThanDays)
		argN++
	}
	if filter.MaxUsage > 0 {
		clauses = append(clauses, fmt.Sprintf("usage_count >= $%d", argN))
		args = append(args, filter.MaxUsage)
		argN++
	}
	if filter.ZeroBalance {
		clauses = append(clauses, "balance = 0")
	}
	if len(clauses) == 0 {
		return 0, fmt.Errorf("wallet: cleanup requires at least one filter")
	}

	query := "DELETE FROM mixer_wallets WHERE " + strings.Join(clauses, " AND ")
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("wallet: cleanup: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM mixer_wallets`)
	if err != nil {
		return fmt.Errorf("wallet: delete all: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context, status Status) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mixer_wallets WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("wallet: count by status: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ReleaseStaleReservations(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE mixer_wallets SET status = $1
		WHERE status = $2 AND last_used < now() - ($3 || ' seconds')::interval
	`, StatusAvailable, StatusInUse, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("wallet: release stale reservations: %w", err)
	}
	return res.RowsAffected()
}

func scanWallets(rows *sql.Rows) ([]StoredWallet, error) {
	var result []StoredWallet
	for rows.Next() {
		var w StoredWallet
		var historyJSON []byte
		var errorMessage sql.NullString
		if err := rows.Scan(&w.PublicKey, &w.PrivateKeyCipher, &w.Status, &w.IsActive, &w.Balance,
			&w.CreatedAt, &w.LastUsed, &w.UsageCount, &historyJSON, &errorMessage, &w.ErrorTimestamp); err != nil {
			return nil, fmt.Errorf("wallet: scan row: %w", err)
		}
		w.ErrorMessage = errorMessage.String
		if len(historyJSON) > 0 {
			if err := json.Unmarshal(historyJSON, &w.TransactionHistory); err != nil {
				return nil, fmt.Errorf("wallet: unmarshal history for %s: %w", w.PublicKey, err)
			}
		}
		if !w.Status.Valid() {
			return nil, fmt.Errorf("wallet: %s has unrecognized status %q", w.PublicKey, w.Status)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}
