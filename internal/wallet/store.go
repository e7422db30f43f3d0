package wallet

import (
	"context"
	"time"
)

// Store defines the persistence contract required by the pool manager
// (§4.1 "persistence contract (abstract)"): uniqueness on public_key,
// atomic find-and-update-many scoped to a transaction, and filter+sort+
// limit reads. PostgresStore is the concrete implementation; any store
// meeting this interface may back the pool.
type Store interface {
	EnsureSchema(ctx context.Context) error

	InsertWallets(ctx context.Context, wallets []StoredWallet) error

	// ListAvailable returns up to n wallets with status=available and
	// is_active=true, ordered by (usage_count asc, last_used asc).
	ListAvailable(ctx context.Context, n int) ([]StoredWallet, error)

	// ReserveForMixing atomically selects up to candidateLimit available
	// wallets excluding the given public keys, invokes validate against
	// each candidate, transitions validated ones to in_use (bumping
	// usage_count and last_used) and failed ones to error, all within a
	// single transaction, and returns the validated subset.
	ReserveForMixing(ctx context.Context, candidateLimit int, exclude []string, validate func(StoredWallet) bool) ([]StoredWallet, error)

	ReleaseWallets(ctx context.Context, publicKeys []string) error

	UpdateBalance(ctx context.Context, publicKey string, balance int64) error

	RecordTransaction(ctx context.Context, publicKey string, entry HistoryEntry) error

	MarkError(ctx context.Context, publicKey string, message string) error

	Stats(ctx context.Context) (Stats, error)

	// Cleanup deletes wallets matching all provided, non-zero filter
	// fields and returns the number of rows removed.
	Cleanup(ctx context.Context, filter CleanupFilter) (int64, error)

	// DeleteAll removes every wallet record (used by regenerate_wallet_pool).
	DeleteAll(ctx context.Context) error

	CountByStatus(ctx context.Context, status Status) (int, error)

	// ReleaseStaleReservations flips status=in_use wallets whose last_used
	// is older than olderThan back to available, and returns the count
	// released. Supports a maintenance sweep recovering reservations left
	// behind by a crashed or killed operation (§4.1 self-heal protocol).
	ReleaseStaleReservations(ctx context.Context, olderThan time.Duration) (int64, error)

	// ListAll returns every wallet record regardless of status, for
	// operator tooling that must account for the whole pool (e.g.
	// drain-wallets) rather than just the reservable subset.
	ListAll(ctx context.Context) ([]StoredWallet, error)
}

// schemaSQL creates the mixer_wallets collection-equivalent table and its
// required indexes (§6).
const schemaSQL = `
CREATE TABLE IF NOT EXISTS mixer_wallets (
	public_key          TEXT PRIMARY KEY,
	private_key_cipher   TEXT NOT NULL,
	status               TEXT NOT NULL,
	is_active            BOOLEAN NOT NULL DEFAULT TRUE,
	balance              BIGINT NOT NULL DEFAULT 0,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_used            TIMESTAMPTZ,
	usage_count          BIGINT NOT NULL DEFAULT 0,
	transaction_history  JSONB NOT NULL DEFAULT '[]',
	error_message        TEXT,
	error_timestamp      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_mixer_wallets_status       ON mixer_wallets (status);
CREATE INDEX IF NOT EXISTS idx_mixer_wallets_is_active     ON mixer_wallets (is_active);
CREATE INDEX IF NOT EXISTS idx_mixer_wallets_balance        ON mixer_wallets (balance);
CREATE INDEX IF NOT EXISTS idx_mixer_wallets_usage_count    ON mixer_wallets (usage_count);
CREATE INDEX IF NOT EXISTS idx_mixer_wallets_created_at     ON mixer_wallets (created_at);
`

// nowUTC centralizes timestamping so tests can reason about ordering.
func nowUTC() time.Time { return time.Now().UTC() }
