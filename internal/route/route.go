// Package route implements the Route Planner: per-destination multi-hop
// route composition with CSPRNG-randomized order and amounts (§4.2).
package route

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/frennadev/nitro-launch-bot-sub004/internal/cryptoutil"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/wallet"
)

// MixingRoute is the plan for one destination (§3).
type MixingRoute struct {
	Source        wallet.Keypair
	Intermediates []wallet.Keypair
	Destination   ed25519.PublicKey
	Amount        uint64
}

// Planner composes routes over a Manager's reserved wallets.
type Planner struct {
	wallets *wallet.Manager
}

// NewPlanner constructs a Planner backed by the given Wallet Pool Manager.
func NewPlanner(wallets *wallet.Manager) *Planner {
	return &Planner{wallets: wallets}
}

// PlanRoutes reserves N*K intermediates in a single call and returns a
// shuffled list of N MixingRoutes, each carrying K intermediates and a
// jittered amount (§4.2).
func (p *Planner) PlanRoutes(ctx context.Context, source wallet.Keypair, destinations []ed25519.PublicKey, baseAmount uint64, hopCount int) ([]MixingRoute, error) {
	n := len(destinations)
	if n == 0 {
		return nil, fmt.Errorf("route: destinations must be non-empty")
	}
	if hopCount < 1 {
		return nil, fmt.Errorf("route: hop count (K) must be >= 1, got %d", hopCount)
	}

	total := n * hopCount
	reserved, err := p.wallets.ReserveWalletsForMixing(ctx, total, nil)
	if err != nil {
		return nil, fmt.Errorf("route: plan routes: %w", err)
	}

	routes := make([]MixingRoute, 0, n)
	idx := 0
	for _, dest := range destinations {
		intermediates := make([]wallet.Keypair, hopCount)
		for h := 0; h < hopCount; h++ {
			kp, err := p.wallets.DecryptKeypair(reserved[idx])
			if err != nil {
				return nil, fmt.Errorf("route: decrypt reserved intermediate %s: %w", reserved[idx].PublicKey, err)
			}
			intermediates[h] = kp
			idx++
		}

		amount, err := cryptoutil.AmountVariation(baseAmount)
		if err != nil {
			return nil, fmt.Errorf("route: amount jitter: %w", err)
		}

		routes = append(routes, MixingRoute{
			Source:        source,
			Intermediates: intermediates,
			Destination:   dest,
			Amount:        uint64(amount),
		})
	}

	if err := cryptoutil.Shuffle(routes); err != nil {
		return nil, fmt.Errorf("route: shuffle routes: %w", err)
	}

	return routes, nil
}

// UsedWalletIDs returns the base58 public keys of every intermediate used
// across routes, for release-at-operation-boundary bookkeeping (§4.4 step 7).
func UsedWalletIDs(routes []MixingRoute) []string {
	var ids []string
	for _, r := range routes {
		for _, kp := range r.Intermediates {
			ids = append(ids, base58.Encode(kp.PublicKey))
		}
	}
	return ids
}
