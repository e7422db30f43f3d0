package chainconn

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/frennadev/nitro-launch-bot-sub004/infrastructure/resilience"
	"github.com/mr-tron/base58"
)

// Transaction is a single native-token transfer, optionally carrying a
// compute-unit priority fee instruction (§4.3 "if priority_fee > 0, prepend
// compute-unit-price instruction").
type Transaction struct {
	From        ed25519.PublicKey
	To          ed25519.PublicKey
	Amount      int64
	Blockhash   string
	PriorityFee int64
}

// message is the canonical byte sequence signers sign over. This is the
// chain-agnostic stand-in for the wire transaction format §9's "dynamic
// any-typed document shapes" calls for typed records over: every field the
// chain would itself serialize is represented explicitly and nothing is
// left to untyped interpolation.
func (t Transaction) message() []byte {
	buf := make([]byte, 0, 32+32+8+8+len(t.Blockhash))
	buf = append(buf, t.From...)
	buf = append(buf, t.To...)

	amountBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(amountBuf, uint64(t.Amount))
	buf = append(buf, amountBuf...)

	feeBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(feeBuf, uint64(t.PriorityFee))
	buf = append(buf, feeBuf...)

	buf = append(buf, []byte(t.Blockhash)...)
	return buf
}

// SignedTransaction pairs a Transaction with its signer's signature(s) and
// is what SendTransaction submits.
type SignedTransaction struct {
	Tx         Transaction
	Signatures [][]byte // sender signature, and fee-payer signature if distinct
}

// Sign signs tx with signer (and feePayer, if distinct from tx.From — the
// fee-funding wallet case of §4.3/§4.4).
func Sign(tx Transaction, signer ed25519.PrivateKey, feePayer ed25519.PrivateKey) SignedTransaction {
	msg := tx.message()
	sigs := [][]byte{ed25519.Sign(signer, msg)}
	if feePayer != nil {
		sigs = append(sigs, ed25519.Sign(feePayer, msg))
	}
	return SignedTransaction{Tx: tx, Signatures: sigs}
}

// SendTransaction submits signed, retrying any failed submit for up to 3
// attempts in all with exponential backoff capped at 5s (§4.3). Every
// attempt resends the same signed payload. On a blockhash-expired error it
// only invalidates the cached blockhash so the next GetLatestBlockhash
// refetches; the transaction being retried is not re-signed over a fresh
// blockhash.
func (c *Client) SendTransaction(ctx context.Context, signed SignedTransaction) (string, error) {
	var signature string

	err := resilience.Retry(ctx, resilience.SubmitRetryConfig(), func() error {
		if err := c.submitLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("chainconn: submit rate limit wait: %w", err)
		}

		sigBytes := signed.Signatures[0]
		encoded := base58.Encode(sigBytes)

		var result string
		breakerErr := c.submitBreaker.Execute(ctx, func() error {
			return rawCall(ctx, c.httpClient, c.endpoint, "sendTransaction",
				[]interface{}{encodeTransaction(signed), commitmentParam{Commitment: "confirmed"}}, &result)
		})
		if breakerErr != nil {
			if isBlockhashExpired(breakerErr) {
				c.invalidateBlockhash()
			}
			return breakerErr
		}

		signature = encoded
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chainconn: send transaction: %w", err)
	}
	return signature, nil
}

// encodeTransaction is the minimal wire payload sendTransaction expects:
// base58 signature plus the canonical message, since this substrate has no
// separate program-instruction encoding layer to model.
func encodeTransaction(signed SignedTransaction) string {
	return base58.Encode(append(signed.Signatures[0], signed.Tx.message()...))
}

// isBlockhashExpired reports whether err represents an expired/stale
// blockhash, the one class of send error that must trigger a refresh before
// retrying (§4.3).
func isBlockhashExpired(err error) bool {
	rpcErr, ok := err.(*rpcError)
	if !ok {
		return false
	}
	switch rpcErr.Code {
	case -32002, -32005: // blockhash not found / transaction simulation failed on blockhash
		return true
	}
	return false
}
