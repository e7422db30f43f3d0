package route

import (
	"context"
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/frennadev/nitro-launch-bot-sub004/internal/cryptoutil"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/wallet"
)

// memStore is a minimal in-memory wallet.Store fake for route-planning tests.
type memStore struct {
	mu      sync.Mutex
	wallets map[string]wallet.StoredWallet
}

func newMemStore() *memStore {
	return &memStore{wallets: make(map[string]wallet.StoredWallet)}
}

func (s *memStore) EnsureSchema(ctx context.Context) error { return nil }

func (s *memStore) InsertWallets(ctx context.Context, wallets []wallet.StoredWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range wallets {
		s.wallets[w.PublicKey] = w
	}
	return nil
}

func (s *memStore) ListAvailable(ctx context.Context, n int) ([]wallet.StoredWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wallet.StoredWallet
	for _, w := range s.wallets {
		if w.Status == wallet.StatusAvailable && w.IsActive {
			out = append(out, w)
			if len(out) >= n {
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) ReserveForMixing(ctx context.Context, candidateLimit int, exclude []string, validate func(wallet.StoredWallet) bool) ([]wallet.StoredWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[e] = true
	}

	var validated []wallet.StoredWallet
	count := 0
	for pk, w := range s.wallets {
		if count >= candidateLimit {
			break
		}
		if w.Status != wallet.StatusAvailable || !w.IsActive || excluded[pk] {
			continue
		}
		count++
		if validate(w) {
			w.Status = wallet.StatusInUse
			w.UsageCount++
			s.wallets[pk] = w
			validated = append(validated, w)
		} else {
			w.Status = wallet.StatusError
			s.wallets[pk] = w
		}
	}
	return validated, nil
}

func (s *memStore) ReleaseWallets(ctx context.Context, publicKeys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pk := range publicKeys {
		if w, ok := s.wallets[pk]; ok {
			w.Status = wallet.StatusAvailable
			s.wallets[pk] = w
		}
	}
	return nil
}

func (s *memStore) UpdateBalance(ctx context.Context, publicKey string, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.wallets[publicKey]
	w.Balance = balance
	if balance == 0 {
		w.Status = wallet.StatusDepleted
	} else {
		w.Status = wallet.StatusAvailable
	}
	s.wallets[publicKey] = w
	return nil
}

func (s *memStore) RecordTransaction(ctx context.Context, publicKey string, entry wallet.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.wallets[publicKey]
	w.TransactionHistory = append(w.TransactionHistory, entry)
	s.wallets[publicKey] = w
	return nil
}

func (s *memStore) MarkError(ctx context.Context, publicKey string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.wallets[publicKey]
	w.Status = wallet.StatusError
	w.ErrorMessage = message
	s.wallets[publicKey] = w
	return nil
}

func (s *memStore) Stats(ctx context.Context) (wallet.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats wallet.Stats
	for _, w := range s.wallets {
		stats.TotalBalance += w.Balance
		switch w.Status {
		case wallet.StatusAvailable:
			stats.Available++
		case wallet.StatusInUse:
			stats.InUse++
		case wallet.StatusDepleted:
			stats.Depleted++
		case wallet.StatusError:
			stats.Error++
		}
	}
	return stats, nil
}

func (s *memStore) Cleanup(ctx context.Context, filter wallet.CleanupFilter) (int64, error) {
	return 0, nil
}

func (s *memStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets = make(map[string]wallet.StoredWallet)
	return nil
}

func (s *memStore) ReleaseStaleReservations(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

func (s *memStore) ListAll(ctx context.Context) ([]wallet.StoredWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]wallet.StoredWallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		all = append(all, w)
	}
	return all, nil
}

func (s *memStore) CountByStatus(ctx context.Context, status wallet.Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, w := range s.wallets {
		if w.Status == status {
			count++
		}
	}
	return count, nil
}

const testSecret = "route-planner-test-secret"

func seededManager(t *testing.T, n int) *wallet.Manager {
	t.Helper()
	store := newMemStore()
	m := wallet.NewManager(store, testSecret, nil)
	_, err := m.GenerateWallets(context.Background(), n)
	require.NoError(t, err)
	return m
}

func TestPlanner_PlanRoutes_ReservesNTimesKAndShuffles(t *testing.T) {
	m := seededManager(t, 20)
	p := NewPlanner(m)

	sourcePub, sourcePriv, err := cryptoutil.GenerateSecureKeypair()
	require.NoError(t, err)
	source := wallet.Keypair{PublicKey: sourcePub, PrivateKey: sourcePriv}

	dests := make([]ed25519.PublicKey, 3)
	for i := range dests {
		pub, _, err := cryptoutil.GenerateSecureKeypair()
		require.NoError(t, err)
		dests[i] = pub
	}

	routes, err := p.PlanRoutes(context.Background(), source, dests, 1_000_000_000, 2)
	require.NoError(t, err)
	require.Len(t, routes, 3)

	used := UsedWalletIDs(routes)
	require.Len(t, used, 6, "N=3 destinations * K=2 hops must reserve exactly N*K intermediates")

	seen := make(map[string]bool)
	for _, id := range used {
		require.False(t, seen[id], "no intermediate should appear in more than one route")
		seen[id] = true
	}
}

func TestPlanner_PlanRoutes_InsufficientPoolFails(t *testing.T) {
	m := seededManager(t, 3) // fewer than N*K=4
	p := NewPlanner(m)

	sourcePub, sourcePriv, err := cryptoutil.GenerateSecureKeypair()
	require.NoError(t, err)
	source := wallet.Keypair{PublicKey: sourcePub, PrivateKey: sourcePriv}

	dests := make([]ed25519.PublicKey, 2)
	for i := range dests {
		pub, _, err := cryptoutil.GenerateSecureKeypair()
		require.NoError(t, err)
		dests[i] = pub
	}

	_, err = p.PlanRoutes(context.Background(), source, dests, 1_000_000_000, 2)
	require.Error(t, err)
}

func TestPlanner_PlanRoutes_AmountWithinJitterBand(t *testing.T) {
	m := seededManager(t, 10)
	p := NewPlanner(m)

	sourcePub, sourcePriv, err := cryptoutil.GenerateSecureKeypair()
	require.NoError(t, err)
	source := wallet.Keypair{PublicKey: sourcePub, PrivateKey: sourcePriv}

	pub, _, err := cryptoutil.GenerateSecureKeypair()
	require.NoError(t, err)

	base := uint64(1_000_000_000)
	routes, err := p.PlanRoutes(context.Background(), source, []ed25519.PublicKey{pub}, base, 2)
	require.NoError(t, err)
	require.Len(t, routes, 1)

	delta := int64(routes[0].Amount) - int64(base)
	if delta < 0 {
		delta = -delta
	}
	require.LessOrEqual(t, delta, int64(float64(base)*0.01))
}
