// Package logging wraps logrus with the structured fields the mixer needs to
// correlate a single mixing operation across hops, wallets, and operator
// commands: a trace ID generated once per MixFunds call and threaded through
// context.Context, plus a handful of domain-specific log helpers for the
// three places that actually need structure beyond a plain message (chain
// transactions, wallet crypto operations, and operator audit actions).
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context values this package reads and writes.
type ContextKey string

const (
	// TraceIDKey correlates every log line emitted during one mixing
	// operation, from wallet reservation through the final hop.
	TraceIDKey ContextKey = "trace_id"
)

// Logger wraps a logrus.Logger with a fixed service name, used to prefix
// every structured log line emitted by that binary (e.g. mixerctl).
type Logger struct {
	*logrus.Logger
	service string
}

// New builds a Logger with an explicit level and format ("json" or "text").
// An unparseable level falls back to Info rather than failing startup.
func New(service, level, format string) *Logger {
	l := logrus.New()

	parsedLevel, err := logrus.ParseLevel(level)
	if err != nil {
		parsedLevel = logrus.InfoLevel
	}
	l.SetLevel(parsedLevel)

	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Logger{Logger: l, service: service}
}

// NewFromEnv builds a Logger from LOG_LEVEL/LOG_FORMAT, defaulting to
// info/json. mixerctl constructs its logger this way rather than
// hardcoding a level.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// NewTraceID mints a trace ID for a new mixing operation. The orchestrator
// calls this once per MixFunds invocation and threads the result through
// WithTraceID so every hop's log lines can be grepped together.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID attaches a trace ID to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID reads the trace ID attached to ctx, or "" if none.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithContext returns a logrus.Entry carrying the service name and, if
// present, the operation's trace ID — every mixer log call goes through
// this so a single `grep trace_id=...` reconstructs one mixing operation.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.WithField("service", l.service)
	if traceID := GetTraceID(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	return entry
}

// WithFields returns a logrus.Entry carrying the service name plus the given
// fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if fields != nil {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	return entry
}

// WithError returns a logrus.Entry carrying the service name and error.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithField("service", l.service).WithError(err)
}

// SetOutput redirects the underlying logrus output (tests point this at a
// bytes.Buffer).
func (l *Logger) SetOutput(output io.Writer) {
	l.Logger.SetOutput(output)
}

// LogHopTransfer records one hop of a mixing route: the hop index, the
// sending and receiving wallets, the lamport amount, and the outcome. Called
// from the orchestrator's hop executors once per hop with that hop's final
// outcome, successful or not; in parallel mode the individual retry
// submissions within a hop are not logged separately.
func (l *Logger) LogHopTransfer(ctx context.Context, hop int, from, to string, lamports int64, sig string, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"component":       "hop_transfer",
		"hop":             hop,
		"from":            from,
		"to":              to,
		"amount_lamports": lamports,
	})
	if err != nil {
		entry.WithError(err).Warn("hop transfer failed")
		return
	}
	entry.WithField("signature", sig).Info("hop transfer confirmed")
}

// LogWalletCrypto records a wallet-pool crypto operation (decrypt,
// generate, self-heal) without ever including key material. Called from the
// wallet package by GenerateWallets and SelfHeal; DecryptKeypair does not
// log through it.
func (l *Logger) LogWalletCrypto(ctx context.Context, operation, publicKey string, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"component":  "wallet_crypto",
		"operation":  operation,
		"public_key": publicKey,
	})
	if err != nil {
		entry.WithError(err).Warn("wallet crypto operation failed")
		return
	}
	entry.Info("wallet crypto operation succeeded")
}

// LogOperatorAction records a sensitive operator CLI action (drain-wallets,
// fix-wallet-pool) for audit purposes: the action, what it targeted, and the
// outcome, plus a trace ID only when ctx carries one (mixerctl's commands
// pass a context without one).
func (l *Logger) LogOperatorAction(ctx context.Context, action, target, outcome string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"component": "operator_audit",
		"action":    action,
		"target":    target,
		"outcome":   outcome,
	}).Warn(fmt.Sprintf("operator action: %s", action))
}
