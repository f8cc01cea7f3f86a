// Package backend abstracts the service that validates and commits user batches.
//
// Two variants satisfy the same Gateway contract: Local runs the core
// pipeline against an in-process store, and Remote calls the user service over
// gRPC. The variant is chosen once per process by New and never changes.
// Every error a Gateway returns is a *TransportError.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/userimport/internal/config"
	"github.com/JonMunkholm/userimport/internal/core"
	"github.com/JonMunkholm/userimport/internal/rpc"
	"github.com/JonMunkholm/userimport/internal/store"
)

// Variant names, used as metric labels and in logs.
const (
	VariantLocal  = "local"
	VariantRemote = "remote"
)

// Gateway validates and imports batches and looks up committed users.
//
// ValidateUsers and ImportUsers return per-row outcomes in the ImportResult;
// an error means the call itself failed and no result is available.
type Gateway interface {
	ValidateUsers(ctx context.Context, batch []core.User) (core.ImportResult, error)
	ImportUsers(ctx context.Context, batch []core.User) (core.ImportResult, error)
	GetAllUsers(ctx context.Context) ([]core.User, error)
	GetUserByID(ctx context.Context, id string) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
}

// New selects and builds the gateway for cfg, wrapped with metrics.
// The returned close function releases the remote connection, if any.
func New(cfg *config.Config, logger *slog.Logger) (Gateway, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rules, err := core.ParseRuleSet(cfg.Upload.ValidationRules)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Backend.UseLocal {
		pipeline := core.NewPipeline(core.NewValidator(core.WithRuleSet(rules)))
		local := NewLocal(store.NewMemory(pipeline), cfg.Backend.LocalLatency)
		logger.Info("using local backend",
			"latency", cfg.Backend.LocalLatency,
			"rules", rules,
		)
		return Instrument(local, VariantLocal), func() error { return nil }, nil
	}

	conn, err := rpc.Dial(cfg.Backend.APIBaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial user service %s: %w", cfg.Backend.APIBaseURL, err)
	}

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.Backend.RetryAttempts

	remote := NewRemote(rpc.NewClient(conn),
		WithTimeout(cfg.Backend.RequestTimeout),
		WithRetry(retry),
		WithLogger(logger),
	)
	logger.Info("using remote backend",
		"target", rpc.NormalizeTarget(cfg.Backend.APIBaseURL),
		"timeout", cfg.Backend.RequestTimeout,
	)
	return Instrument(remote, VariantRemote), conn.Close, nil
}

// Local is the in-process gateway. Every call waits a fixed latency first,
// honouring ctx, to mimic a network round trip.
type Local struct {
	store   *store.Memory
	latency time.Duration
}

// NewLocal creates a Local gateway over s.
func NewLocal(s *store.Memory, latency time.Duration) *Local {
	return &Local{store: s, latency: latency}
}

func (l *Local) ValidateUsers(ctx context.Context, batch []core.User) (core.ImportResult, error) {
	if err := l.wait(ctx); err != nil {
		return core.ImportResult{}, err
	}
	return l.store.Validate(batch), nil
}

func (l *Local) ImportUsers(ctx context.Context, batch []core.User) (core.ImportResult, error) {
	if err := l.wait(ctx); err != nil {
		return core.ImportResult{}, err
	}
	return l.store.Commit(batch), nil
}

func (l *Local) GetAllUsers(ctx context.Context) ([]core.User, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.store.All(), nil
}

func (l *Local) GetUserByID(ctx context.Context, id string) (core.User, error) {
	if err := l.wait(ctx); err != nil {
		return core.User{}, err
	}
	return lookup(l.store.GetByID(id))
}

func (l *Local) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	if err := l.wait(ctx); err != nil {
		return core.User{}, err
	}
	return lookup(l.store.GetByEmail(email))
}

func (l *Local) wait(ctx context.Context) error {
	if l.latency <= 0 {
		return FromError(ctx.Err())
	}

	timer := time.NewTimer(l.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return FromError(ctx.Err())
	case <-timer.C:
		return nil
	}
}

func lookup(u core.User, err error) (core.User, error) {
	if errors.Is(err, store.ErrNotFound) {
		return core.User{}, notFound()
	}
	if err != nil {
		return core.User{}, FromError(err)
	}
	return u, nil
}
