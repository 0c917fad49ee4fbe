package angler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/sk3pz/anglerbot/internal/ledger"
	"golang.org/x/sync/errgroup"
)

// ReconcilePolicy decides what happens to a cast that was in the water when
// the bot stopped or lost its gateway connection.
type ReconcilePolicy string

const (
	// PolicyDrop clears the casting flag and forgets the catch.
	PolicyDrop ReconcilePolicy = "drop"
	// PolicyReplay resolves the persisted cast immediately.
	PolicyReplay ReconcilePolicy = "replay"
)

func ParsePolicy(s string) (ReconcilePolicy, error) {
	switch ReconcilePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyDrop:
		return PolicyDrop, nil
	case PolicyReplay:
		return PolicyReplay, nil
	default:
		return "", fmt.Errorf("unknown reconcile policy %q", s)
	}
}

const reconcileWorkers = 8

type Report struct {
	Replayed int
	Dropped  int
	Stray    int
}

// Reconcile clears every stuck casting flag. It is safe to run any number of
// times: a second pass finds nothing to do.
func (e *Engine) Reconcile(ctx context.Context) (Report, error) {
	var replayed, dropped, stray atomic.Int64

	keys, err := e.book.Casting(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list casting ledgers: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileWorkers)
	for _, key := range keys {
		g.Go(func() error {
			if e.policy == PolicyReplay {
				out, ok, err := e.resolvePending(gctx, key, "")
				if err != nil {
					return fmt.Errorf("replay %s: %w", key, err)
				}
				if ok {
					e.deliver(gctx, out)
					replayed.Add(1)
					return nil
				}
			}

			didDrop, err := e.drop(gctx, key)
			if err != nil {
				return fmt.Errorf("drop %s: %w", key, err)
			}
			if didDrop {
				dropped.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	// pending casts whose ledger is not casting are leftovers from a write
	// that failed halfway
	pending, err := e.pending.PendingKeys(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list pending casts: %w", err)
	}
	for _, key := range pending {
		_, err := e.book.UpdateThen(ctx, key, func(l *ledger.Ledger) error {
			if l.Casting {
				return errStale
			}
			return nil
		}, e.deletePending(ctx, key))
		if errors.Is(err, errStale) {
			continue
		}
		if err != nil {
			return Report{}, fmt.Errorf("delete stray cast %s: %w", key, err)
		}
		stray.Add(1)
	}

	r := Report{
		Replayed: int(replayed.Load()),
		Dropped:  int(dropped.Load()),
		Stray:    int(stray.Load()),
	}
	if r != (Report{}) {
		slog.Info("reconciled casts",
			slog.String("policy", string(e.policy)),
			slog.Int("replayed", r.Replayed),
			slog.Int("dropped", r.Dropped),
			slog.Int("stray", r.Stray))
	}
	return r, nil
}

func (e *Engine) drop(ctx context.Context, key ledger.Key) (bool, error) {
	_, err := e.book.UpdateThen(ctx, key, func(l *ledger.Ledger) error {
		if !l.Casting {
			return errStale
		}
		l.Casting = false
		return nil
	}, e.deletePending(ctx, key))
	if errors.Is(err, errStale) {
		return false, nil
	}
	return err == nil, err
}

// deletePending is a commit hook that removes key's pending cast once its
// ledger no longer points at it.
func (e *Engine) deletePending(ctx context.Context, key ledger.Key) func(ledger.Ledger) error {
	return func(ledger.Ledger) error {
		if err := e.pending.DeletePending(ctx, key); err != nil {
			return fmt.Errorf("delete pending cast: %w", err)
		}
		return nil
	}
}
