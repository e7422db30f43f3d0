// Package main provides the mixer operator CLI.
//
// Usage:
//
//	mixerctl drain-wallets <destination>   - sweep every pool wallet to destination
//	mixerctl fix-wallet-pool               - validate wallets, regenerate pool if depleted
//	mixerctl stats                         - print wallet pool counts
package main

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mr-tron/base58"

	"github.com/frennadev/nitro-launch-bot-sub004/infrastructure/logging"
	slruntime "github.com/frennadev/nitro-launch-bot-sub004/infrastructure/runtime"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/chainconn"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/config"
	"github.com/frennadev/nitro-launch-bot-sub004/internal/wallet"
)

// maintenanceSchedule is the default cron expression for the background
// self-heal sweep (§4.1, every five minutes).
const maintenanceSchedule = "*/5 * * * *"

// minPoolSize is the fix-wallet-pool regeneration threshold (§6).
const minPoolSize = 1000

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	log := logging.NewFromEnv("mixerctl")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	store := wallet.NewPostgresStore(db)
	manager := wallet.NewManager(store, cfg.EncryptionSecret, log)
	if err := manager.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to connect wallet pool: %v\n", err)
		os.Exit(1)
	}

	chain := chainconn.NewClient(chainconn.Config{
		Endpoint:  cfg.RPCEndpoint,
		ReadRPS:   cfg.ReadRequestsPerSecond,
		SubmitRPS: cfg.SubmitRequestsPerSecond,
	}, log)

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "drain-wallets":
		cmdDrainWallets(ctx, manager, chain, log, cfg.PriorityFee, args)
	case "fix-wallet-pool":
		cmdFixWalletPool(ctx, manager, log, args)
	case "stats":
		cmdStats(ctx, manager)
	case "maintain":
		cmdMaintain(ctx, manager, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`mixerctl - wallet pool operator CLI

Usage:
  mixerctl <command> [arguments]

Commands:
  drain-wallets <destination>   Sweep every pool wallet's balance to destination
  fix-wallet-pool               Validate wallets, mark undecryptables as error,
                                 regenerate the pool if available count falls
                                 below 1000
  stats                         Print wallet pool counts by status
  maintain                      Run the background self-heal sweep until
                                 signaled (releases stale reservations,
                                 removes zero-balance wallets older than
                                 7 days, every 5 minutes)

Environment Variables:
  MIXER_DATABASE_URL   Postgres connection string
  ENCRYPTION_SECRET    Master secret for wallet private key decryption
  RPC_ENDPOINT         Chain JSON-RPC endpoint

Examples:
  mixerctl drain-wallets 7fC1mN...
  mixerctl fix-wallet-pool
  mixerctl stats`)
}

// cmdDrainWallets implements §6's decommissioning sweep: every pool wallet,
// regardless of status, sends its MaxTransferable amount (balance less fee,
// rent reserve and safety buffer) to destination. Wallets whose balance
// cannot be read or is zero are skipped.
func cmdDrainWallets(ctx context.Context, m *wallet.Manager, chain *chainconn.Client, log *logging.Logger, priorityFee int64, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: mixerctl drain-wallets <destination>")
		os.Exit(1)
	}

	if slruntime.IsProduction() && !slruntime.ResolveBool(false, "MIXERCTL_CONFIRM_DRAIN") {
		fmt.Fprintln(os.Stderr, "Error: refusing to drain the production wallet pool without MIXERCTL_CONFIRM_DRAIN=yes")
		os.Exit(1)
	}

	destPub, err := decodeAddress(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid destination address: %v\n", err)
		os.Exit(1)
	}
	defer func() { log.LogOperatorAction(ctx, "drain-wallets", args[0], "completed") }()

	all, err := m.AllWallets(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: list wallets: %v\n", err)
		os.Exit(1)
	}

	var drained, failed int
	var totalDrained int64
	for _, record := range all {
		kp, err := m.DecryptKeypair(record)
		if err != nil {
			m.SelfHeal(ctx, record.PublicKey, err)
			failed++
			continue
		}

		balance, err := chain.GetBalance(ctx, record.PublicKey)
		if err != nil || balance <= 0 {
			continue
		}

		max, err := chain.MaxTransferable(ctx, record.PublicKey, priorityFee)
		if err != nil || max <= 0 {
			continue
		}

		blockhash, err := chain.GetLatestBlockhash(ctx)
		if err != nil {
			failed++
			continue
		}

		tx := chainconn.Transaction{
			From:        kp.PublicKey,
			To:          destPub,
			Amount:      max,
			Blockhash:   blockhash,
			PriorityFee: priorityFee,
		}
		signed := chainconn.Sign(tx, kp.PrivateKey, nil)
		sig, err := chain.SendTransaction(ctx, signed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: drain %s failed: %v\n", record.PublicKey, err)
			failed++
			continue
		}

		drained++
		totalDrained += max
		fmt.Printf("drained %d from %s (%s)\n", max, record.PublicKey, sig)
	}

	fmt.Printf("\ndrained %d wallets (%d lamports total), %d failed\n", drained, totalDrained, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// cmdFixWalletPool implements §6's self-heal operator command: validate
// every wallet's decryptability, mark failures as error, and regenerate the
// entire pool if what remains available falls below minPoolSize.
func cmdFixWalletPool(ctx context.Context, m *wallet.Manager, log *logging.Logger, args []string) {
	defer func() { log.LogOperatorAction(ctx, "fix-wallet-pool", "pool", "completed") }()

	stats, err := m.GetWalletStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: fetch wallet stats: %v\n", err)
		os.Exit(1)
	}

	all, err := m.AllWallets(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: list wallets: %v\n", err)
		os.Exit(1)
	}

	var marked int
	for _, record := range all {
		if m.ValidateWalletDecryption(record) {
			continue
		}
		m.SelfHeal(ctx, record.PublicKey, fmt.Errorf("trial decryption failed"))
		marked++
	}
	fmt.Printf("validated %d wallets, marked %d as error\n", len(all), marked)

	if stats.Available-marked >= minPoolSize {
		fmt.Printf("available count (%d) is above threshold (%d), no regeneration needed\n", stats.Available-marked, minPoolSize)
		return
	}

	fmt.Printf("available count below threshold, regenerating pool with %d wallets\n", minPoolSize)
	if _, err := m.RegenerateWalletPool(ctx, minPoolSize); err != nil {
		fmt.Fprintf(os.Stderr, "Error: regenerate pool: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("pool regenerated")
}

func cmdStats(ctx context.Context, m *wallet.Manager) {
	stats, err := m.GetWalletStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: fetch wallet stats: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Available:     %d\n", stats.Available)
	fmt.Printf("In use:        %d\n", stats.InUse)
	fmt.Printf("Depleted:      %d\n", stats.Depleted)
	fmt.Printf("Error:         %d\n", stats.Error)
	fmt.Printf("Total balance: %d\n", stats.TotalBalance)
}

// cmdMaintain runs the wallet pool's background self-heal sweep until
// interrupted (§4.1, scheduled via robfig/cron rather than a one-shot
// fix-wallet-pool invocation).
func cmdMaintain(ctx context.Context, m *wallet.Manager, log *logging.Logger) {
	schedule := slruntime.ResolveString("", "MIXER_MAINTENANCE_SCHEDULE", maintenanceSchedule)

	maintainer := wallet.NewMaintainer(m, log)
	if err := maintainer.Start(ctx, schedule); err != nil {
		fmt.Fprintf(os.Stderr, "Error: start maintenance sweep: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("maintenance sweep running on schedule %q, press Ctrl+C to stop\n", schedule)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	maintainer.Stop()
}

func decodeAddress(s string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("expected %d-byte public key, got %d", ed25519.PublicKeySize, len(decoded))
	}
	return ed25519.PublicKey(decoded), nil
}
