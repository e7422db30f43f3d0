package mixer

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"github.com/frennadev/nitro-launch-bot-sub004/infrastructure/errors"
	"github.com/frennadev/nitro-launch-bot-sub004/infrastructure/logging"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/chainconn"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/cryptoutil"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/recovery"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/route"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/wallet"
)

// dustThreshold is the minimum per_destination share below which a mixing
// operation is rejected as SOURCE_INSUFFICIENT (§7).
const dustThreshold = 1

// Orchestrator is the Mixer Orchestrator (§4.4). It owns no persistent
// state of its own: the Wallet Pool Manager owns wallet mutation, the
// Connection Layer owns chain I/O.
type Orchestrator struct {
	chain   *chainconn.Client
	wallets *wallet.Manager
	planner *route.Planner
	sweeper *recovery.Sweeper
	metrics *Metrics
	log     *logging.Logger
}

// NewOrchestrator wires the four subsystems §2's data flow names:
// Connection Layer, Wallet Pool Manager, Route Planner, Recovery Subsystem.
func NewOrchestrator(chain *chainconn.Client, wallets *wallet.Manager, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		chain:   chain,
		wallets: wallets,
		planner: route.NewPlanner(wallets),
		sweeper: recovery.NewSweeper(chain, wallets),
		metrics: newMetrics(),
		log:     log,
	}
}

// MixFunds is the entry point (§4.4 steps 1-7): validate, plan, pre-fund,
// execute every route, and release every reserved wallet at the operation
// boundary regardless of outcome.
func (o *Orchestrator) MixFunds(ctx context.Context, source wallet.Keypair, destinations []wallet.Keypair, cfg MixerConfig) (*Summary, error) {
	if logging.GetTraceID(ctx) == "" {
		ctx = logging.WithTraceID(ctx, logging.NewTraceID())
	}
	cfg = defaultConfig(cfg)
	n := len(destinations)

	if err := o.validate(ctx, source, n, cfg); err != nil {
		return nil, err
	}

	total, err := o.chain.MaxTransferable(ctx, base58.Encode(source.PublicKey), cfg.PriorityFee)
	if err != nil {
		return nil, fmt.Errorf("mixer: compute max transferable for source: %w", err)
	}
	perDestination := total / int64(n)
	if perDestination <= 0 {
		return nil, errors.SourceInsufficient(total, int64(n)*dustThreshold)
	}

	routes, err := o.planner.PlanRoutes(ctx, source, toPublicKeys(destinations), uint64(perDestination), cfg.IntermediateWalletCount)
	if err != nil {
		return nil, fmt.Errorf("mixer: plan routes: %w", err)
	}

	usedWalletIDs := route.UsedWalletIDs(routes)
	defer func() {
		if relErr := o.wallets.ReleaseWallets(context.Background(), usedWalletIDs); relErr != nil {
			o.logf(ctx, "failed to release %d wallets at operation boundary: %v", len(usedWalletIDs), relErr)
		}
	}()

	feeSignatures, err := o.preFundIntermediates(ctx, routes, cfg)
	if err != nil {
		return nil, fmt.Errorf("mixer: pre-fund intermediates: %w", err)
	}

	totalHops := cfg.IntermediateWalletCount + 1
	budget, err := cryptoutil.RandomDelay(cfg.MinDelay, cfg.MaxDelay)
	if err != nil {
		return nil, fmt.Errorf("mixer: pick wall-clock budget: %w", err)
	}
	perHopDelay := capDelay(budget/time.Duration(maxInt(totalHops-1, 1)), 200*time.Millisecond)

	results := make([]MixingResult, 0, len(routes))
	successCount := 0
	for _, r := range routes {
		result := o.executeRoute(ctx, r, cfg, perHopDelay)
		result.FeeFundingSignatures = append(result.FeeFundingSignatures, feeSignatures...)
		if result.Success {
			successCount++
		}
		o.metrics.observeRoute(result.Success)
		results = append(results, result)
	}

	return &Summary{SuccessCount: successCount, TotalRoutes: len(routes), Results: results}, nil
}

// executeRoute dispatches to the sequential or parallel sub-executor and
// implements §4.4.3's automatic mode fallback: a failed parallel attempt is
// re-run sequentially for the same route, and only the sequential outcome
// is reported.
func (o *Orchestrator) executeRoute(ctx context.Context, r route.MixingRoute, cfg MixerConfig, perHopDelay time.Duration) MixingResult {
	if !cfg.ParallelMode {
		return o.runSequential(ctx, r, cfg, perHopDelay)
	}

	result := o.runParallel(ctx, r, cfg)
	if result.Success {
		return result
	}

	o.logf(ctx, "parallel mode failed for route to %s, falling back to sequential: %s", base58.Encode(r.Destination), result.Error)
	return o.runSequential(ctx, r, cfg, perHopDelay)
}

// validate implements §4.4.1's precondition checks.
func (o *Orchestrator) validate(ctx context.Context, source wallet.Keypair, n int, cfg MixerConfig) error {
	if n < 1 {
		return fmt.Errorf("mixer: destinations must be non-empty")
	}
	if cfg.IntermediateWalletCount < 1 {
		return fmt.Errorf("mixer: intermediate wallet count (K) must be >= 1")
	}

	fee := o.chain.EstimateTransactionFee(cfg.PriorityFee)
	rent := o.chain.GetMinimumBalanceForRentExemption()
	balance, err := o.chain.GetBalance(ctx, base58.Encode(source.PublicKey))
	if err != nil {
		return fmt.Errorf("mixer: fetch source balance: %w", err)
	}
	required := rent + fee*int64(n)
	if balance < required {
		return errors.SourceInsufficient(balance, required)
	}

	available, err := o.wallets.CountAvailable(ctx)
	if err != nil {
		return fmt.Errorf("mixer: count available wallets: %w", err)
	}
	o.metrics.setPoolAvailable(available)
	needed := n * cfg.IntermediateWalletCount
	if available < needed {
		return errors.PoolInsufficient(needed, available)
	}

	if cfg.FeeFundingWallet != nil {
		feeBalance, err := o.chain.GetBalance(ctx, base58.Encode(cfg.FeeFundingWallet.PublicKey))
		if err != nil {
			return fmt.Errorf("mixer: fetch fee wallet balance: %w", err)
		}
		// §9 open question: this undercounts by pre_funding_hops, flagged not
		// silently corrected.
		requiredFee := fee * int64(n) * int64(cfg.IntermediateWalletCount+1)
		if feeBalance < requiredFee {
			return errors.FeeWalletInsufficient(feeBalance, requiredFee)
		}
	}

	return nil
}

// preFundIntermediates implements §4.4 step 4: pre-fund each unique
// intermediate with exactly one transaction-fee's worth when a fee-funding
// wallet is configured, skipping any that already hold enough.
func (o *Orchestrator) preFundIntermediates(ctx context.Context, routes []route.MixingRoute, cfg MixerConfig) ([]string, error) {
	if cfg.FeeFundingWallet == nil {
		return nil, nil
	}

	fee := o.chain.EstimateTransactionFee(cfg.PriorityFee)

	seen := make(map[string]bool)
	var signatures []string
	for _, r := range routes {
		for _, intermediate := range r.Intermediates {
			addr := base58.Encode(intermediate.PublicKey)
			if seen[addr] {
				continue
			}
			seen[addr] = true

			balance, err := o.chain.GetBalance(ctx, addr)
			if err != nil {
				return signatures, fmt.Errorf("mixer: pre-fund balance check %s: %w", addr, err)
			}
			if balance >= fee {
				continue
			}

			blockhash, err := o.chain.GetLatestBlockhash(ctx)
			if err != nil {
				return signatures, fmt.Errorf("mixer: pre-fund blockhash: %w", err)
			}
			tx := chainconn.Transaction{
				From:        cfg.FeeFundingWallet.PublicKey,
				To:          intermediate.PublicKey,
				Amount:      fee,
				Blockhash:   blockhash,
				PriorityFee: cfg.PriorityFee,
			}
			signed := chainconn.Sign(tx, cfg.FeeFundingWallet.PrivateKey, nil)
			sig, err := o.chain.SendTransaction(ctx, signed)
			if err != nil {
				return signatures, fmt.Errorf("mixer: pre-fund send to %s: %w", addr, err)
			}
			signatures = append(signatures, sig)
		}
	}
	return signatures, nil
}

func (o *Orchestrator) logf(ctx context.Context, format string, args ...interface{}) {
	if o.log == nil {
		return
	}
	o.log.WithContext(ctx).Warnf(format, args...)
}

// logHop records one hop's final outcome for trace-ID correlation across
// an entire route (§4.4.2/§4.4.3's hop sequence).
func (o *Orchestrator) logHop(ctx context.Context, hop int, from, to string, amount int64, sig string, err error) {
	if o.log == nil {
		return
	}
	o.log.LogHopTransfer(ctx, hop, from, to, amount, sig, err)
}

func capDelay(d, cap time.Duration) time.Duration {
	if d > cap {
		return cap
	}
	if d < 0 {
		return 0
	}
	return d
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Metrics exposes the orchestrator's Prometheus instruments for
// registration at process startup.
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

func toPublicKeys(destinations []wallet.Keypair) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, len(destinations))
	for i, d := range destinations {
		keys[i] = d.PublicKey
	}
	return keys
}
