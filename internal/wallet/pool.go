package wallet

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/frennadev/nitro-launch-bot-sub004/infrastructure/errors"
	"github.com/frennadev/nitro-launch-bot-sub004/infrastructure/logging"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/cryptoutil"
	"github.com/mr-tron/base58"
)

// validationOverfetch is the ≥1.5x candidate multiplier get_available_wallets
// applies to absorb validation misses (§4.1).
const validationOverfetch = 1.5

// Manager is the Wallet Pool Manager (§4.1). It exclusively owns mutation of
// status, is_active, last_used, usage_count, error_*, and transaction_history
// for every StoredWallet (§3 ownership).
type Manager struct {
	store        Store
	masterSecret string
	log          *logging.Logger
}

// NewManager constructs a Manager over store, encrypting and decrypting
// with masterSecret (§6 "master secret is supplied at construction").
func NewManager(store Store, masterSecret string, log *logging.Logger) *Manager {
	return &Manager{store: store, masterSecret: masterSecret, log: log}
}

// Connect ensures the backing schema and indexes exist (§4.1 connect()).
func (m *Manager) Connect(ctx context.Context) error {
	return m.store.EnsureSchema(ctx)
}

// Disconnect is a placeholder hook for stores with explicit teardown; the
// default *sql.DB-backed store has no per-call teardown of its own.
func (m *Manager) Disconnect(ctx context.Context) error {
	return nil
}

// GenerateWallets samples n CSPRNG keypairs, encrypts each under
// masterSecret, and bulk-inserts them with status=available (§4.1).
func (m *Manager) GenerateWallets(ctx context.Context, n int) ([]StoredWallet, error) {
	if n <= 0 {
		return nil, fmt.Errorf("wallet: n must be positive, got %d", n)
	}

	wallets := make([]StoredWallet, 0, n)
	for i := 0; i < n; i++ {
		pub, priv, err := cryptoutil.GenerateSecureKeypair()
		if err != nil {
			return nil, fmt.Errorf("wallet: generate keypair %d/%d: %w", i+1, n, err)
		}

		var iv [16]byte
		if err := fillRandomIV(iv[:]); err != nil {
			return nil, err
		}
		cipher, err := EncryptPrivateKey(priv, m.masterSecret, iv)
		if err != nil {
			return nil, errors.EncryptionFailed(err)
		}

		wallets = append(wallets, StoredWallet{
			PublicKey:        base58.Encode(pub),
			PrivateKeyCipher: cipher,
			Status:           StatusAvailable,
			IsActive:         true,
			Balance:          0,
			CreatedAt:        nowUTC(),
			UsageCount:       0,
		})
	}

	if err := m.store.InsertWallets(ctx, wallets); err != nil {
		return nil, fmt.Errorf("wallet: insert generated wallets: %w", err)
	}
	if m.log != nil {
		m.log.LogWalletCrypto(ctx, fmt.Sprintf("generate_%d", n), "", nil)
	}
	return wallets, nil
}

// GetAvailableWallets returns up to n candidates, ordered by wear, dropping
// any that fail trial decryption (transitioning them to error) and
// over-fetching by validationOverfetch to absorb the misses (§4.1).
func (m *Manager) GetAvailableWallets(ctx context.Context, n int) ([]StoredWallet, error) {
	fetchN := int(float64(n) * validationOverfetch)
	if fetchN < n {
		fetchN = n
	}

	candidates, err := m.store.ListAvailable(ctx, fetchN)
	if err != nil {
		return nil, err
	}

	var valid []StoredWallet
	for _, c := range candidates {
		if m.ValidateWalletDecryption(c) {
			valid = append(valid, c)
			if len(valid) >= n {
				break
			}
			continue
		}
		if err := m.store.MarkError(ctx, c.PublicKey, "trial decryption failed"); err != nil {
			m.logf(ctx, "failed to mark wallet error during get_available_wallets: %v", err)
		}
	}

	if len(valid) > n {
		valid = valid[:n]
	}
	return valid, nil
}

// ReserveWalletsForMixing atomically reserves exactly n validated wallets,
// excluding any public keys already claimed within the same operation
// (§4.1). Candidates are over-fetched at ⌈2n⌉ per the spec's stated ratio.
func (m *Manager) ReserveWalletsForMixing(ctx context.Context, n int, exclude []string) ([]StoredWallet, error) {
	if n <= 0 {
		return nil, fmt.Errorf("wallet: n must be positive, got %d", n)
	}
	candidateLimit := 2 * n

	validated, err := m.store.ReserveForMixing(ctx, candidateLimit, exclude, m.ValidateWalletDecryption)
	if err != nil {
		return nil, fmt.Errorf("wallet: reserve for mixing: %w", err)
	}
	if len(validated) < n {
		// Best-effort: nothing was left reserved for the caller to use, but
		// what we did validate is now sitting in_use. Release it immediately
		// since reservation as a whole failed.
		if relErr := m.ReleaseWallets(ctx, publicKeysOf(validated)); relErr != nil {
			m.logf(ctx, "failed to release partial reservation after INSUFFICIENT_POOL: %v", relErr)
		}
		return nil, errors.PoolInsufficient(n, len(validated))
	}

	// The store may have reserved more than n; hand the surplus back so only
	// the n returned wallets stay in_use.
	if surplus := validated[n:]; len(surplus) > 0 {
		if relErr := m.ReleaseWallets(ctx, publicKeysOf(surplus)); relErr != nil {
			m.logf(ctx, "failed to release %d surplus reserved wallets: %v", len(surplus), relErr)
		}
	}
	return validated[:n], nil
}

// ReleaseWallets flips status back to available for the given public keys
// without touching usage_count or is_active (§4.1).
func (m *Manager) ReleaseWallets(ctx context.Context, publicKeys []string) error {
	return m.store.ReleaseWallets(ctx, publicKeys)
}

// UpdateWalletBalance sets balance and derives status (depleted at zero,
// available otherwise) per §4.1.
func (m *Manager) UpdateWalletBalance(ctx context.Context, publicKey string, balance int64) error {
	return m.store.UpdateBalance(ctx, publicKey, balance)
}

// RecordTransaction appends entry to publicKey's transaction_history.
func (m *Manager) RecordTransaction(ctx context.Context, publicKey string, entry HistoryEntry) error {
	if !entry.Type.Valid() {
		return fmt.Errorf("wallet: unrecognized transaction type %q", entry.Type)
	}
	return m.store.RecordTransaction(ctx, publicKey, entry)
}

// ValidateWalletDecryption trial-decrypts record and checks the derived
// public key matches the stored one (§4.1). Implements the self-heal
// protocol's validation step; callers transition failures to error.
func (m *Manager) ValidateWalletDecryption(record StoredWallet) bool {
	kp, err := m.DecryptKeypair(record)
	if err != nil {
		return false
	}
	return base58.Encode(kp.PublicKey) == record.PublicKey
}

// DecryptKeypair decrypts a StoredWallet's private_key_cipher into a usable
// Keypair. On failure, callers should invoke the self-heal protocol and
// transition the wallet to error (§4.1).
func (m *Manager) DecryptKeypair(record StoredWallet) (Keypair, error) {
	priv, err := DecryptPrivateKey(record.PrivateKeyCipher, m.masterSecret)
	if err != nil {
		return Keypair{}, errors.PoolDecryptFail(record.PublicKey, err)
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return Keypair{}, errors.PoolDecryptFail(record.PublicKey, fmt.Errorf("unexpected public key type"))
	}
	return Keypair{PublicKey: pub, PrivateKey: priv}, nil
}

// SelfHeal marks a wallet as error after any getKeypairFromStoredWallet
// failure outside the reservation path (§4.1 self-heal protocol). mixerctl's
// drain-wallets and fix-wallet-pool call this when a wallet fails to decrypt.
func (m *Manager) SelfHeal(ctx context.Context, publicKey string, cause error) {
	if m.log != nil {
		m.log.LogWalletCrypto(ctx, "self_heal", publicKey, cause)
	}
	if err := m.store.MarkError(ctx, publicKey, cause.Error()); err != nil {
		m.logf(ctx, "self-heal: failed to mark %s as error: %v", publicKey, err)
	}
}

// GetWalletStats returns counts per status plus total balance (§4.1).
func (m *Manager) GetWalletStats(ctx context.Context) (Stats, error) {
	return m.store.Stats(ctx)
}

// CleanupWallets bulk-deletes records matching all provided filters (§4.1).
func (m *Manager) CleanupWallets(ctx context.Context, filter CleanupFilter) (int64, error) {
	return m.store.Cleanup(ctx, filter)
}

// RegenerateWalletPool deletes every record and generates n fresh wallets
// (§4.1).
func (m *Manager) RegenerateWalletPool(ctx context.Context, n int) ([]StoredWallet, error) {
	if err := m.store.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("wallet: regenerate: delete all: %w", err)
	}
	return m.GenerateWallets(ctx, n)
}

// CountAvailable reports the number of wallets currently reservable, used by
// the orchestrator's pool-size precondition check before planning routes.
func (m *Manager) CountAvailable(ctx context.Context) (int, error) {
	return m.store.CountByStatus(ctx, StatusAvailable)
}

// AllWallets returns every pool wallet regardless of status, for operator
// tooling that must account for the whole pool rather than just the
// reservable subset (e.g. drain-wallets).
func (m *Manager) AllWallets(ctx context.Context) ([]StoredWallet, error) {
	return m.store.ListAll(ctx)
}

// ReleaseStaleReservations returns abandoned in_use wallets to available.
// Intended for a periodic maintenance sweep recovering reservations that
// outlive a crashed mixing operation (§4.1 self-heal protocol, applied on
// a timer rather than only on decrypt failure).
func (m *Manager) ReleaseStaleReservations(ctx context.Context, olderThan time.Duration) (int64, error) {
	return m.store.ReleaseStaleReservations(ctx, olderThan)
}

func (m *Manager) logf(ctx context.Context, format string, args ...interface{}) {
	if m.log == nil {
		return
	}
	m.log.WithContext(ctx).Warnf(format, args...)
}

func publicKeysOf(wallets []StoredWallet) []string {
	keys := make([]string, len(wallets))
	for i, w := range wallets {
		keys[i] = w.PublicKey
	}
	return keys
}
