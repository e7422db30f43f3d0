// Package recovery implements the best-effort sweep of stuck intermediate
// balances back to the funding account after a route fails (§4.5).
package recovery

import (
	"context"
	"time"

	"github.com/mr-tron/base58"

	"github.com/frennadev/nitro-launch-bot-sub004/internal/chainconn"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/wallet"
)

// Result is the outcome of sweeping one failed route's intermediates (§3
// MixingResult.recovery).
type Result struct {
	RecoveredWallets     []string
	LostFunds            int64
	RecoveryTransactions []string
}

// Sweeper sweeps stuck intermediates back to a route's source.
type Sweeper struct {
	chain   *chainconn.Client
	wallets *wallet.Manager
}

// NewSweeper constructs a Sweeper.
func NewSweeper(chain *chainconn.Client, wallets *wallet.Manager) *Sweeper {
	return &Sweeper{chain: chain, wallets: wallets}
}

// Sweep attempts to recover funds from every intermediate in
// usedIntermediates back to source. It never returns an error: failures are
// accumulated into Result.LostFunds and recovery never re-enters the
// executor or retries a failed sweep (§4.5).
func (s *Sweeper) Sweep(ctx context.Context, source wallet.Keypair, usedIntermediates []wallet.Keypair, priorityFee int64) Result {
	var result Result

	sourceAddr := base58.Encode(source.PublicKey)

	for _, intermediate := range usedIntermediates {
		addr := base58.Encode(intermediate.PublicKey)

		balance, err := s.chain.GetBalance(ctx, addr)
		if err != nil {
			// Balance unknown: nothing accounted for, nothing recoverable.
			continue
		}
		if balance <= 0 {
			continue
		}

		max, err := s.chain.MaxTransferable(ctx, addr, priorityFee)
		if err != nil || max <= 0 {
			result.LostFunds += balance
			continue
		}

		tx := chainconn.Transaction{
			From:        intermediate.PublicKey,
			To:          source.PublicKey,
			Amount:      max,
			PriorityFee: priorityFee,
		}
		blockhash, err := s.chain.GetLatestBlockhash(ctx)
		if err != nil {
			result.LostFunds += balance
			continue
		}
		tx.Blockhash = blockhash

		signed := chainconn.Sign(tx, intermediate.PrivateKey, nil)
		sig, err := s.chain.SendTransaction(ctx, signed)
		if err != nil {
			result.LostFunds += balance
			continue
		}

		confirmed, err := s.chain.WaitForConfirmation(ctx, sig)
		if err != nil || !confirmed {
			result.LostFunds += balance
			continue
		}

		result.RecoveredWallets = append(result.RecoveredWallets, addr)
		result.RecoveryTransactions = append(result.RecoveryTransactions, sig)

		_ = s.wallets.RecordTransaction(ctx, addr, wallet.HistoryEntry{
			Signature: sig,
			Type:      wallet.TxSend,
			Amount:    max,
			Timestamp: time.Now().UTC(),
			From:      addr,
			To:        sourceAddr,
		})
		_ = s.wallets.UpdateWalletBalance(ctx, addr, 0)
	}

	return result
}
