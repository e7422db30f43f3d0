// Package cryptoutil provides the CSPRNG-backed primitives used on the
// mixing path: delays, keypair generation, shuffling, and amount jitter
// (§4.6). Nothing in this package may fall back to math/rand.
package cryptoutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"
)

// secureUint32 returns a uniform value in [0, 2^32) drawn from crypto/rand.
func secureUint32() (uint32, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("cryptoutil: read random bytes: %w", err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// secureFloat64 returns a uniform value in [0, 1) with 32 bits of entropy:
// a 32-bit CSPRNG sample divided by 2^32, so the result never reaches 1.
func secureFloat64() (float64, error) {
	v, err := secureUint32()
	if err != nil {
		return 0, err
	}
	return float64(v) / (1 << 32), nil
}

// RandomDelay maps a 32-bit CSPRNG sample into [min, max).
func RandomDelay(min, max time.Duration) (time.Duration, error) {
	if max <= min {
		return min, nil
	}
	u, err := secureFloat64()
	if err != nil {
		return 0, err
	}
	span := max - min
	return min + time.Duration(u*float64(span)), nil
}

// GenerateSecureKeypair samples a fresh ed25519 keypair from crypto/rand.
func GenerateSecureKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptoutil: generate keypair: %w", err)
	}
	return pub, priv, nil
}

// Shuffle permutes s in place via Fisher-Yates using CSPRNG-derived indices.
func Shuffle[T any](s []T) error {
	for i := len(s) - 1; i > 0; i-- {
		j, err := secureIntn(i + 1)
		if err != nil {
			return err
		}
		s[i], s[j] = s[j], s[i]
	}
	return nil
}

// secureIntn returns a uniform value in [0, n) without modulo bias.
func secureIntn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("cryptoutil: secureIntn: n must be positive, got %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("cryptoutil: read random int: %w", err)
	}
	return int(v.Int64()), nil
}

// AmountVariation computes base + jitter(base) per §4.2: jitter magnitude is
// a uniform fraction u in [0.001, 0.01) of base, sign chosen by a uniform bit.
func AmountVariation(base uint64) (int64, error) {
	u, err := secureFloat64()
	if err != nil {
		return 0, err
	}
	u = 0.001 + u*(0.01-0.001)

	magnitude := int64(float64(base) * u)

	signBit, err := secureUint32()
	if err != nil {
		return 0, err
	}
	if signBit%2 == 0 {
		magnitude = -magnitude
	}

	result := int64(base) + magnitude
	if result < 0 {
		result = 0
	}
	return result, nil
}

// Sleep blocks for d, honoring ctx-free cancellation is the caller's job;
// this helper exists purely to keep call sites readable and centralized.
func Sleep(d time.Duration) {
	time.Sleep(d)
}
