// Package mixer implements the Mixer Orchestrator: sequential and parallel
// route execution, fee pre-funding, and ordering guarantees (§4.4).
package mixer

import (
	"time"

	"github.com/frennadev/nitro-launch-bot-sub004/internal/route"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/wallet"
)

// MixerConfig recognized options and their effects (§3).
type MixerConfig struct {
	IntermediateWalletCount int // K, hops per destination (K >= 1)
	MinDelay                time.Duration
	MaxDelay                time.Duration
	UseFreshWallets         bool
	PriorityFee             int64
	FeeFundingWallet        *wallet.Keypair // optional
	ParallelMode            bool
	MaxConcurrentTx         int
	BalanceCheckTimeout     time.Duration
}

// RecoveryInfo is the recovery outcome attached to a failed MixingResult (§3).
type RecoveryInfo struct {
	RecoveredWallets     []string
	LostFunds            int64
	RecoveryTransactions []string
}

// MixingResult is the outcome of executing one route (§3).
type MixingResult struct {
	Success               bool
	TransactionSignatures []string
	FeeFundingSignatures  []string
	Error                 string
	Route                 route.MixingRoute
	UsedWalletIDs         []string
	Recovery              *RecoveryInfo
}

// Summary is run_mixer's aggregate return value (§6 invoker-facing API).
type Summary struct {
	SuccessCount int
	TotalRoutes  int
	Results      []MixingResult
}

func defaultConfig(cfg MixerConfig) MixerConfig {
	if cfg.IntermediateWalletCount < 1 {
		cfg.IntermediateWalletCount = 8
	}
	if cfg.MaxConcurrentTx < 1 {
		cfg.MaxConcurrentTx = 3
	}
	if cfg.BalanceCheckTimeout <= 0 {
		cfg.BalanceCheckTimeout = 5 * time.Second
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = 5 * time.Second
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return cfg
}
