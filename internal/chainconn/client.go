package chainconn

import (
	"context"
	"fmt"
	"net/http"
	"time"

	chaincache "github.com/frennadev/nitro-launch-bot-sub004/infrastructure/cache"
	"github.com/frennadev/nitro-launch-bot-sub004/infrastructure/logging"
	"github.com/frennadev/nitro-launch-bot-sub004/infrastructure/ratelimit"
	"github.com/frennadev/nitro-launch-bot-sub004/infrastructure/resilience"
)

const (
	// BaseFee is the fixed per-transaction base fee in base units (§4.3).
	BaseFee int64 = 5000

	balanceCacheTTL   = 5 * time.Second
	blockhashCacheTTL = 10 * time.Second

	// safetyBuffer pads max_transferable beyond fee + rent exemption to
	// avoid leaving an account teetering on the purge threshold.
	safetyBuffer int64 = 1000
)

// Config configures a Client's rate limits and HTTP transport (§4.3).
type Config struct {
	Endpoint          string
	ReadRPS           int // default 180
	SubmitRPS         int // default 45
	RentExemptBalance int64
	HTTPTimeout       time.Duration
}

// Client is the chain transport used by the Route Planner, Mixer
// Orchestrator, and Recovery Subsystem. It never holds private keys.
type Client struct {
	endpoint   string
	httpClient *http.Client

	readLimiter   *ratelimit.RateLimiter
	submitLimiter *ratelimit.RateLimiter

	balanceCache   *chaincache.Cache
	blockhashCache *chaincache.Cache

	rentExemption int64

	submitBreaker *resilience.CircuitBreaker
	log           *logging.Logger
}

// NewClient constructs a Client against cfg.
func NewClient(cfg Config, log *logging.Logger) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	readCfg := ratelimit.ReadLimiterConfig()
	if cfg.ReadRPS > 0 {
		readCfg = ratelimit.RateLimitConfig{RequestsPerSecond: float64(cfg.ReadRPS), Burst: cfg.ReadRPS, Window: time.Second}
	}
	submitCfg := ratelimit.SubmitLimiterConfig()
	if cfg.SubmitRPS > 0 {
		submitCfg = ratelimit.RateLimitConfig{RequestsPerSecond: float64(cfg.SubmitRPS), Burst: cfg.SubmitRPS, Window: time.Second}
	}

	return &Client{
		endpoint:       cfg.Endpoint,
		httpClient:     &http.Client{Timeout: timeout},
		readLimiter:    ratelimit.New(readCfg),
		submitLimiter:  ratelimit.New(submitCfg),
		balanceCache:   newBalanceCache(),
		blockhashCache: newBlockhashCache(),
		rentExemption:  cfg.RentExemptBalance,
		submitBreaker:  resilience.New(resilience.SubmitBreakerConfig()),
		log:            log,
	}
}

// GetBalance returns pk's current on-chain balance, served from a bounded
// TTL cache (default 5s, §4.3).
func (c *Client) GetBalance(ctx context.Context, pk string) (int64, error) {
	if cached, ok := c.balanceCache.Get(pk); ok {
		return cached.(int64), nil
	}

	if err := c.readLimiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("chainconn: rate limit wait: %w", err)
	}

	var result balanceResult
	if err := rawCall(ctx, c.httpClient, c.endpoint, "getBalance", []interface{}{pk, commitmentParam{Commitment: "confirmed"}}, &result); err != nil {
		return 0, fmt.Errorf("chainconn: getBalance(%s): %w", pk, err)
	}

	c.balanceCache.Set(pk, result.Value, 0)
	return result.Value, nil
}

// BatchGetBalances fetches balances for every key in pks, using the cache
// where possible and issuing individual getBalance calls for the rest.
func (c *Client) BatchGetBalances(ctx context.Context, pks []string) (map[string]int64, error) {
	out := make(map[string]int64, len(pks))
	for _, pk := range pks {
		balance, err := c.GetBalance(ctx, pk)
		if err != nil {
			return nil, err
		}
		out[pk] = balance
	}
	return out, nil
}

// GetLatestBlockhash returns the current blockhash, cached ~10s to avoid
// hot-path RPC (§4.3).
func (c *Client) GetLatestBlockhash(ctx context.Context) (string, error) {
	const cacheKey = "latest"
	if cached, ok := c.blockhashCache.Get(cacheKey); ok {
		return cached.(string), nil
	}

	if err := c.readLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("chainconn: rate limit wait: %w", err)
	}

	var result blockhashResult
	if err := rawCall(ctx, c.httpClient, c.endpoint, "getLatestBlockhash", []interface{}{commitmentParam{Commitment: "confirmed"}}, &result); err != nil {
		return "", fmt.Errorf("chainconn: getLatestBlockhash: %w", err)
	}

	c.blockhashCache.Set(cacheKey, result.Value.Blockhash, 0)
	return result.Value.Blockhash, nil
}

// invalidateBlockhash forces the next GetLatestBlockhash call to refresh,
// used by SendTransaction's blockhash-expired retry path.
func (c *Client) invalidateBlockhash() {
	c.blockhashCache.Invalidate("latest")
}

// EstimateTransactionFee returns base_fee + priorityFee (§4.3).
func (c *Client) EstimateTransactionFee(priorityFee int64) int64 {
	return BaseFee + priorityFee
}

// GetMinimumBalanceForRentExemption returns the chain's rent-exempt
// constant, supplied at construction since it changes only with chain
// parameters (§4.3).
func (c *Client) GetMinimumBalanceForRentExemption() int64 {
	return c.rentExemption
}

// MaxTransferable computes the largest amount pk can send while retaining
// rent exemption and the fee it must pay, floored at 0 (§4.3, GLOSSARY).
func (c *Client) MaxTransferable(ctx context.Context, pk string, priorityFee int64) (int64, error) {
	balance, err := c.GetBalance(ctx, pk)
	if err != nil {
		return 0, err
	}
	fee := c.EstimateTransactionFee(priorityFee)
	max := balance - fee - c.rentExemption - safetyBuffer
	if max < 0 {
		return 0, nil
	}
	return max, nil
}
