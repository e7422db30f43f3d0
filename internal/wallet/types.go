// Package wallet implements the Wallet Pool Manager: a persisted, encrypted,
// concurrency-safe store of ephemeral intermediate keypairs with atomic
// reservation, release, validation, and self-healing (§3, §4.1).
package wallet

import (
	"crypto/ed25519"
	"time"
)

// Status is the closed enumeration of StoredWallet lifecycle states (§4.1
// state machine). Unknown values read from storage must fail loudly rather
// than silently coerce (§9).
type Status string

const (
	StatusAvailable Status = "available"
	StatusInUse     Status = "in_use"
	StatusDepleted  Status = "depleted"
	StatusError     Status = "error"
)

// Valid reports whether s is one of the closed enumeration members.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusDepleted, StatusError:
		return true
	default:
		return false
	}
}

// TxType is the closed enumeration of transaction_history entry kinds.
type TxType string

const (
	TxReceive    TxType = "receive"
	TxSend       TxType = "send"
	TxFeeFunding TxType = "fee_funding"
)

func (t TxType) Valid() bool {
	switch t {
	case TxReceive, TxSend, TxFeeFunding:
		return true
	default:
		return false
	}
}

// HistoryEntry is one append-only transaction_history record.
type HistoryEntry struct {
	Signature string    `json:"signature"`
	Type      TxType    `json:"type"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	From      string    `json:"from_address,omitempty"`
	To        string    `json:"to_address,omitempty"`
}

// StoredWallet is the persisted record of a pool wallet (§3, §6).
type StoredWallet struct {
	PublicKey         string // base58, 32-byte ed25519 public key
	PrivateKeyCipher  string // §6 wire format: hex(iv) + ":" + hex(ciphertext)
	Status            Status
	IsActive          bool
	Balance           int64
	CreatedAt         time.Time
	LastUsed          *time.Time
	UsageCount        int64
	TransactionHistory []HistoryEntry
	ErrorMessage      string
	ErrorTimestamp    *time.Time
}

// Keypair is the decrypted in-memory form of a StoredWallet, held only for
// the duration of a route; the orchestrator never persists it (§3 ownership).
type Keypair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// Stats is the aggregation returned by get_wallet_stats (§4.1).
type Stats struct {
	Available    int
	InUse        int
	Depleted     int
	Error        int
	TotalBalance int64
}

// CleanupFilter bounds cleanup_wallets (§4.1); zero-value fields are not
// applied as filters.
type CleanupFilter struct {
	OlderThanDays int
	MaxUsage      int64
	ZeroBalance   bool
}
