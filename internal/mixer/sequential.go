package mixer

import (
	"context"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"github.com/frennadev/nitro-launch-bot-sub004/internal/cryptoutil"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/route"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/wallet"
)

// runSequential walks F -> I1 -> ... -> IK -> D, confirming each hop before
// submitting the next (§4.4.2).
func (o *Orchestrator) runSequential(ctx context.Context, r route.MixingRoute, cfg MixerConfig, perHopDelay time.Duration) MixingResult {
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
		amount, err := o.determineAmount(ctx, addrOf(sender), isFirst, r.Amount, remaining, feeFunded)
		if err != nil || amount <= 0 {
			return o.failRoute(ctx, result, r, cfg.PriorityFee, fmt.Sprintf("hop %d: insufficient amount: %v", i, err))
		}

		var feePayer *wallet.Keypair
		if feeFunded {
			feePayer = cfg.FeeFundingWallet
		}

		sig, err := o.submitHop(ctx, sender, recipientPub, amount, cfg.PriorityFee, feePayer)
		if err != nil {
			o.logHop(ctx, i, addrOf(sender), recipientAddr, amount, "", err)
			return o.failRoute(ctx, result, r, cfg.PriorityFee, fmt.Sprintf("hop %d send failed: %v", i, err))
		}
		result.TransactionSignatures = append(result.TransactionSignatures, sig)

		if !o.confirmHop(ctx, sig, recipientAddr, amount) {
			o.logHop(ctx, i, addrOf(sender), recipientAddr, amount, sig, fmt.Errorf("confirmation and balance check both failed"))
			return o.failRoute(ctx, result, r, cfg.PriorityFee, fmt.Sprintf("hop %d confirmation and balance check both failed", i))
		}
		o.logHop(ctx, i, addrOf(sender), recipientAddr, amount, sig, nil)

		if !isLast {
			_ = o.wallets.RecordTransaction(ctx, recipientAddr, wallet.HistoryEntry{
				Signature: sig,
				Type:      wallet.TxReceive,
				Amount:    amount,
				From:      addrOf(sender),
				To:        recipientAddr,
			})
			_ = o.wallets.UpdateWalletBalance(ctx, recipientAddr, amount)
			sender = hops[i]
			cryptoutil.Sleep(perHopDelay)
		}
		remaining = amount
	}

	result.Success = true
	return result
}

// confirmHop accepts either a confirmed on-chain status or an observed
// recipient balance meeting the expected amount (§4.4.2 "double-check
// tolerates slot-skip expiration when funds actually arrived").
func (o *Orchestrator) confirmHop(ctx context.Context, sig, recipientAddr string, expected int64) bool {
	confirmed, err := o.chain.WaitForConfirmation(ctx, sig)
	if err == nil && confirmed {
		return true
	}

	balance, balErr := o.chain.GetBalance(ctx, recipientAddr)
	if balErr != nil {
		return false
	}
	return balance >= expected
}

// failRoute runs the recovery sweep over this route's intermediates and
// returns the terminal failed MixingResult (§4.4.2, §4.5).
func (o *Orchestrator) failRoute(ctx context.Context, result MixingResult, r route.MixingRoute, priorityFee int64, reason string) MixingResult {
	result.Success = false
	result.Error = reason

	sweep := o.sweeper.Sweep(ctx, r.Source, r.Intermediates, priorityFee)
	result.Recovery = &RecoveryInfo{
		RecoveredWallets:     sweep.RecoveredWallets,
		LostFunds:            sweep.LostFunds,
		RecoveryTransactions: sweep.RecoveryTransactions,
	}
	return result
}
