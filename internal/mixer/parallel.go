package mixer

import (
	"context"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"github.com/frennadev/nitro-launch-bot-sub004/internal/route"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/wallet"
)

// minSenderResidual is the ~0.01 SOL-equivalent balance below which a
// sender is considered drained by its own transfer (§4.4.3).
const minSenderResidual int64 = 10_000_000

const pollInterval = 300 * time.Millisecond
const maxHopRetries = 2

// hopState is the parallel sub-executor's explicit per-hop state machine
// (§9 "model as a per-hop state machine rather than nested async
// callbacks"): Submitting -> Polling -> (Retrying)* -> Accepted | Failed.
type hopState int

const (
	stateSubmitting hopState = iota
	statePolling
	stateRetrying
	stateAccepted
	stateFailed
)

// runParallel overlaps submission of successive hops with balance polling
// instead of awaiting full confirmation (§4.4.3).
func (o *Orchestrator) runParallel(ctx context.Context, r route.MixingRoute, cfg MixerConfig) MixingResult {
	hops := r.Intermediates
	result := MixingResult{Route: r, UsedWalletIDs: route.UsedWalletIDs([]route.MixingRoute{r})}

	sender := r.Source
	var remaining int64
	for i := 0; i <= len(hops); i++ {
		isFirst := i == 0
		isLast := i == len(hops)

		var recipientAddr string
		var recipientPub []byte
		if isLast {
			recipientAddr = base58.Encode(r.Destination)
			recipientPub = r.Destination
		} else {
			recipientAddr = addrOf(hops[i])
			recipientPub = hops[i].PublicKey
		}

		feeFunded := cfg.FeeFundingWallet != nil && !isFirst
		var feePayer *wallet.Keypair
		if feeFunded {
			feePayer = cfg.FeeFundingWallet
		}

		timeout := cfg.BalanceCheckTimeout
		if isLast {
			timeout *= 2
		}

		sigs, accepted := o.runHopStateMachine(ctx, sender, recipientAddr, recipientPub, r.Amount, remaining, isFirst, feeFunded, feePayer, cfg.PriorityFee, timeout)
		result.TransactionSignatures = append(result.TransactionSignatures, sigs...)
		lastSig := ""
		if len(sigs) > 0 {
			lastSig = sigs[len(sigs)-1]
		}
		if !accepted {
			o.logHop(ctx, i, addrOf(sender), recipientAddr, 0, lastSig, fmt.Errorf("neither receiver funded nor sender drained after %d attempt(s)", len(sigs)))
			return o.failRoute(ctx, result, r, cfg.PriorityFee, fmt.Sprintf("hop %d: neither receiver funded nor sender drained", i))
		}

		balance, err := o.chain.GetBalance(ctx, recipientAddr)
		if err != nil {
			o.logHop(ctx, i, addrOf(sender), recipientAddr, 0, lastSig, fmt.Errorf("post-accept balance read failed: %w", err))
			return o.failRoute(ctx, result, r, cfg.PriorityFee, fmt.Sprintf("hop %d: post-accept balance read failed: %v", i, err))
		}
		o.logHop(ctx, i, addrOf(sender), recipientAddr, balance, lastSig, nil)

		if !isLast {
			_ = o.wallets.RecordTransaction(ctx, recipientAddr, wallet.HistoryEntry{
				Signature: sigs[len(sigs)-1],
				Type:      wallet.TxReceive,
				Amount:    balance,
				From:      addrOf(sender),
				To:        recipientAddr,
			})
			_ = o.wallets.UpdateWalletBalance(ctx, recipientAddr, balance)
			sender = hops[i]
		}
		remaining = balance
	}

	result.Success = true
	return result
}

// runHopStateMachine drives one hop's Submitting -> Polling -> Retrying
// cycle, returning every signature submitted (initial plus retries) and
// whether the hop ultimately accepted (§4.4.3).
func (o *Orchestrator) runHopStateMachine(ctx context.Context, sender wallet.Keypair, recipientAddr string, recipientPub []byte, routeAmount uint64, remaining int64, isFirst, feeFunded bool, feePayer *wallet.Keypair, priorityFee int64, timeout time.Duration) ([]string, bool) {
	var signatures []string
	state := stateSubmitting
	attempt := 0

	amount, err := o.determineAmount(ctx, addrOf(sender), isFirst, routeAmount, remaining, feeFunded)
	if err != nil || amount <= 0 {
		return signatures, false
	}

	for {
		switch state {
		case stateSubmitting, stateRetrying:
			sig, err := o.submitHop(ctx, sender, recipientPub, amount, priorityFee, feePayer)
			if err != nil {
				return signatures, false
			}
			signatures = append(signatures, sig)
			state = statePolling

		case statePolling:
			deadline := time.Now().Add(timeout)
			for time.Now().Before(deadline) {
				balance, err := o.chain.GetBalance(ctx, recipientAddr)
				if err == nil && balance >= amount {
					state = stateAccepted
					break
				}
				select {
				case <-ctx.Done():
					return signatures, false
				case <-time.After(pollInterval):
				}
			}
			if state == stateAccepted {
				continue
			}

			senderBalance, err := o.chain.GetBalance(ctx, addrOf(sender))
			if err != nil {
				state = stateFailed
				continue
			}
			if senderBalance <= minSenderResidual {
				// Sender drained: funds presumably arrived even though the
				// poll window closed without observing it (final-hop success
				// rule generalizes cleanly to every hop here).
				state = stateAccepted
				continue
			}
			if attempt >= maxHopRetries {
				state = stateFailed
				continue
			}
			attempt++
			retryAmount := amount
			if capped := int64(float64(senderBalance) * 0.95); capped < retryAmount {
				retryAmount = capped
			}
			amount = retryAmount
			state = stateRetrying

		case stateAccepted:
			return signatures, true

		case stateFailed:
			return signatures, false
		}
	}
}
