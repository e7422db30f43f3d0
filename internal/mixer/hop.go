package mixer

import (
	"context"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"github.com/frennadev/nitro-launch-bot-sub004/internal/chainconn"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/wallet"
)

// feeFundedForwardRatio is the fraction of a fee-funded intermediate's
// received balance it forwards onward, leaving headroom below 100% (§4.4.2).
const feeFundedForwardRatio = 0.998

// determineAmount implements §4.4.2's per-hop amount rule, shared by the
// sequential and parallel sub-executors.
func (o *Orchestrator) determineAmount(ctx context.Context, senderAddr string, isFirstHop bool, routeAmount uint64, remaining int64, feeFunded bool) (int64, error) {
	if isFirstHop {
		max, err := o.chain.MaxTransferable(ctx, senderAddr, 0)
		if err != nil {
			return 0, fmt.Errorf("mixer: max transferable for source: %w", err)
		}
		amt := int64(routeAmount)
		if max < amt {
			amt = max
		}
		return amt, nil
	}

	if feeFunded {
		return int64(float64(remaining) * feeFundedForwardRatio), nil
	}

	max, err := o.chain.MaxTransferable(ctx, senderAddr, 0)
	if err != nil {
		return 0, fmt.Errorf("mixer: max transferable for intermediate %s: %w", senderAddr, err)
	}
	if max <= 0 {
		return 0, fmt.Errorf("mixer: intermediate %s has nothing transferable", senderAddr)
	}
	return max, nil
}

// submitHop builds, signs, and submits a single transfer, optionally with
// the fee-funding wallet as a distinct fee payer.
func (o *Orchestrator) submitHop(ctx context.Context, from wallet.Keypair, to []byte, amount, priorityFee int64, feePayer *wallet.Keypair) (string, error) {
	started := time.Now()
	defer func() { o.metrics.observeHop(time.Since(started).Seconds()) }()

	blockhash, err := o.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("mixer: blockhash: %w", err)
	}

	tx := chainconn.Transaction{
		From:        from.PublicKey,
		To:          to,
		Amount:      amount,
		Blockhash:   blockhash,
		PriorityFee: priorityFee,
	}

	var signed chainconn.SignedTransaction
	if feePayer != nil {
		signed = chainconn.Sign(tx, from.PrivateKey, feePayer.PrivateKey)
	} else {
		signed = chainconn.Sign(tx, from.PrivateKey, nil)
	}

	sig, err := o.chain.SendTransaction(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("mixer: send: %w", err)
	}
	return sig, nil
}

func addrOf(kp wallet.Keypair) string {
	return base58.Encode(kp.PublicKey)
}
