package chainconn

import (
	"context"
	"fmt"
	"time"
)

// errorClass distinguishes the two adaptive backoff tracks of §4.3.
type errorClass int

const (
	classDefault errorClass = iota
	classExpiration
	classNetwork
)

// classify inspects err and maps it onto one of §4.3's backoff classes.
func classify(err error) errorClass {
	if err == nil {
		return classDefault
	}
	if rpcErr, ok := err.(*rpcError); ok {
		switch rpcErr.Code {
		case -32002, -32005:
			return classExpiration
		case -32603: // internal/transient network-shaped error
			return classNetwork
		}
	}
	return classDefault
}

// backoffSequence returns the capped backoff schedule for a class (§4.3):
// expiration-class waits longer (2s/4s/8s capped 10s), network-class waits
// shorter (0.5s/1s/2s capped 3s), everything else uses default exponential.
func backoffSequence(class errorClass, attempt int) time.Duration {
	switch class {
	case classExpiration:
		schedule := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
		return capped(schedule, attempt, 10*time.Second)
	case classNetwork:
		schedule := []time.Duration{500 * time.Millisecond, 1 * time.Second, 2 * time.Second}
		return capped(schedule, attempt, 3*time.Second)
	default:
		d := time.Duration(1<<uint(attempt)) * time.Second
		if d > 10*time.Second {
			d = 10 * time.Second
		}
		return d
	}
}

func capped(schedule []time.Duration, attempt int, cap time.Duration) time.Duration {
	if attempt < len(schedule) {
		return schedule[attempt]
	}
	return cap
}

// WaitForConfirmation polls getSignatureStatuses for sig up to 8 times with
// an adaptive backoff; the error class picks the wait between polls, not the
// number of polls (§4.3).
func (c *Client) WaitForConfirmation(ctx context.Context, sig string) (bool, error) {
	const maxRetries = 8

	var lastErr error
	class := classDefault

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := c.readLimiter.Wait(ctx); err != nil {
			return false, fmt.Errorf("chainconn: rate limit wait: %w", err)
		}

		var result signatureStatusesResult
		err := rawCall(ctx, c.httpClient, c.endpoint, "getSignatureStatuses", []interface{}{[]string{sig}}, &result)
		if err != nil {
			lastErr = err
			class = classify(err)
		} else if len(result.Value) > 0 && result.Value[0] != nil {
			status := result.Value[0]
			if status.Err != nil {
				return false, fmt.Errorf("chainconn: transaction %s failed on-chain: %v", sig, status.Err)
			}
			if status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized" {
				return true, nil
			}
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(backoffSequence(class, attempt)):
		}
	}

	if lastErr != nil {
		return false, fmt.Errorf("chainconn: wait for confirmation %s: %w", sig, lastErr)
	}
	return false, nil
}
