package backend

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/userimport/internal/core"
	"github.com/JonMunkholm/userimport/internal/metrics"
)

// Instrument wraps next so every call records its latency and result.
func Instrument(next Gateway, variant string) Gateway {
	return &instrumented{next: next, variant: variant}
}

type instrumented struct {
	next    Gateway
	variant string
}

func (g *instrumented) observe(method string, start time.Time, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	metrics.ObserveBackendCall(g.variant, method, result, time.Since(start))
}

func (g *instrumented) ValidateUsers(ctx context.Context, batch []core.User) (core.ImportResult, error) {
	start := time.Now()
	result, err := g.next.ValidateUsers(ctx, batch)
	g.observe("ValidateUsers", start, err)
	return result, err
}

func (g *instrumented) ImportUsers(ctx context.Context, batch []core.User) (core.ImportResult, error) {
	start := time.Now()
	result, err := g.next.ImportUsers(ctx, batch)
	g.observe("ImportUsers", start, err)
	return result, err
}

func (g *instrumented) GetAllUsers(ctx context.Context) ([]core.User, error) {
	start := time.Now()
	users, err := g.next.GetAllUsers(ctx)
	g.observe("GetAllUsers", start, err)
	return users, err
}

func (g *instrumented) GetUserByID(ctx context.Context, id string) (core.User, error) {
	start := time.Now()
	u, err := g.next.GetUserByID(ctx, id)
	g.observe("GetUserByID", start, err)
	return u, err
}

func (g *instrumented) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	start := time.Now()
	u, err := g.next.GetUserByEmail(ctx, email)
	g.observe("GetUserByEmail", start, err)
	return u, err
}
