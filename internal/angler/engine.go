package angler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sk3pz/anglerbot/internal/clock"
	"github.com/sk3pz/anglerbot/internal/fish"
	"github.com/sk3pz/anglerbot/internal/ledger"
	"github.com/sk3pz/anglerbot/internal/rod"
	"github.com/sk3pz/anglerbot/internal/roll"
	"github.com/sk3pz/anglerbot/internal/shop"
	"github.com/sk3pz/anglerbot/internal/tuning"
)

// DefaultMinDelay keeps a lucky roll from resolving a cast instantly.
const DefaultMinDelay = time.Second

const resolveTimeout = 30 * time.Second

// DefaultRetryDelay is how long a cast waits before another try when its
// resolution could not be saved.
const DefaultRetryDelay = 5 * time.Second

type PendingStore interface {
	PutPending(ctx context.Context, key ledger.Key, castID string, doc []byte) error
	GetPending(ctx context.Context, key ledger.Key) (castID string, doc []byte, ok bool, err error)
	DeletePending(ctx context.Context, key ledger.Key) error
	PendingKeys(ctx context.Context) ([]ledger.Key, error)
}

type CatchLog interface {
	AddCatch(ctx context.Context, c fish.Catch) error
}

// Notifier delivers resolved outcomes to wherever the cast came from.
type Notifier interface {
	Notify(ctx context.Context, o Outcome)
}

type NotifierFunc func(ctx context.Context, o Outcome)

func (f NotifierFunc) Notify(ctx context.Context, o Outcome) { f(ctx, o) }

type Config struct {
	Book       *ledger.Book
	Pending    PendingStore
	Catches    CatchLog
	Rods       *rod.Catalog
	Species    *fish.Registry
	Sampler    *fish.Sampler
	Shop       *shop.Rotation
	Tuning     tuning.Source
	Notifier   Notifier
	Rand       roll.Source
	Clock      clock.Clock
	Policy     ReconcilePolicy
	MinDelay   time.Duration
	RetryDelay time.Duration
}

type Engine struct {
	book     *ledger.Book
	pending  PendingStore
	catches  CatchLog
	rods     *rod.Catalog
	species  *fish.Registry
	sampler  *fish.Sampler
	shop     *shop.Rotation
	tuning   tuning.Source
	notifier Notifier
	src      roll.Source
	clk      clock.Clock
	policy   ReconcilePolicy
	minDelay time.Duration
	retry    time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

func New(cfg Config) *Engine {
	e := &Engine{
		book:     cfg.Book,
		pending:  cfg.Pending,
		catches:  cfg.Catches,
		rods:     cfg.Rods,
		species:  cfg.Species,
		sampler:  cfg.Sampler,
		shop:     cfg.Shop,
		tuning:   cfg.Tuning,
		notifier: cfg.Notifier,
		src:      cfg.Rand,
		clk:      cfg.Clock,
		policy:   cfg.Policy,
		minDelay: cfg.MinDelay,
		retry:    cfg.RetryDelay,
		timers:   map[string]*time.Timer{},
	}
	if e.src == nil {
		e.src = roll.New(nil)
	}
	if e.clk == nil {
		e.clk = clock.Real{}
	}
	if e.sampler == nil {
		e.sampler = fish.NewSampler(e.species, nil, e.src)
	}
	if e.notifier == nil {
		e.notifier = NotifierFunc(func(context.Context, Outcome) {})
	}
	if e.policy == "" {
		e.policy = PolicyDrop
	}
	if e.minDelay <= 0 {
		e.minDelay = DefaultMinDelay
	}
	if e.retry <= 0 {
		e.retry = DefaultRetryDelay
	}
	return e
}

// SetNotifier swaps where outcomes go. The bot sets itself once it has a
// session.
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = n
}

func (e *Engine) notify(ctx context.Context, o Outcome) {
	e.mu.Lock()
	n := e.notifier
	e.mu.Unlock()
	n.Notify(ctx, o)
}

type Receipt struct {
	Rod  rod.Rod
	Cast Cast
}

// StartCast puts a player's line in the water. The fish, the catch roll and
// the theft roll are all decided here; the resolution is scheduled after
// the computed delay and cannot be cancelled by the player.
func (e *Engine) StartCast(ctx context.Context, key ledger.Key, channelID string) (Receipt, error) {
	if e.isClosed() {
		return Receipt{}, ErrClosed
	}

	mult, err := e.tuning.Load()
	if err != nil {
		return Receipt{}, err
	}

	var rc Receipt
	_, err = e.book.Update(ctx, key, func(l *ledger.Ledger) error {
		if l.Casting {
			return ErrAlreadyCasting
		}

		rd, err := e.rods.Lookup(l.RodID, l.RodModifierID)
		if err != nil {
			return err
		}

		f := e.sampler.Sample(rd, mult.RarityBoost)
		now := e.clk.Now()
		delay := CastDelay(rd.RandomCatchTime(e.src), f.WeightDeviation(), mult.CastTimeDivisor, e.minDelay)

		c := Cast{
			ID:          uuid.NewString(),
			Guild:       key.Guild,
			User:        key.User,
			ChannelID:   channelID,
			Rod:         rd.String(),
			WeightLimit: rd.WeightLimit,
			Species:     f.Species.Key,
			Rarity:      f.Rarity,
			Weight:      f.Weight,
			CatchRoll:   roll.Chance(e.src, rd.CatchChance+mult.CatchChance, 1000),
			StolenRoll:  roll.Chance(e.src, StealChance, 100),
			Delay:       delay,
			StartedAt:   now,
			ResolveAt:   now.Add(delay),
		}

		doc, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := e.pending.PutPending(ctx, key, c.ID, doc); err != nil {
			return fmt.Errorf("save pending cast: %w", err)
		}

		l.Casting = true
		rc = Receipt{Rod: rd, Cast: c}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	e.schedule(rc.Cast)
	logCast(rc.Cast, e.species)
	return rc, nil
}

func logCast(c Cast, reg *fish.Registry) {
	attrs := []any{
		slog.String("key", c.Key().String()),
		slog.String("cast", c.ID),
		slog.String("fish", reg.NameByKey(c.Species)),
		slog.String("rarity", c.Rarity.String()),
		slog.Float64("weight", c.Weight),
		slog.Bool("will_catch", c.CatchRoll && c.Weight <= c.WeightLimit),
		slog.Duration("delay", c.Delay),
	}
	if c.Rarity.Notable() {
		slog.Info("line cast", append(attrs, slog.Bool("notable", true))...)
		return
	}
	slog.Debug("line cast", attrs...)
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) schedule(c Cast) {
	e.scheduleAfter(c.Key(), c.ID, c.Delay)
}

func (e *Engine) scheduleAfter(key ledger.Key, castID string, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		// Shutdown's reconcile pass will find the pending cast
		return
	}
	if t, ok := e.timers[castID]; ok {
		t.Stop()
	}
	e.timers[castID] = time.AfterFunc(d, func() { e.fire(key, castID) })
}

func (e *Engine) fire(key ledger.Key, castID string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	delete(e.timers, castID)
	e.wg.Add(1)
	e.mu.Unlock()
	defer e.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	out, ok, err := e.resolvePending(ctx, key, castID)
	if err != nil {
		slog.Error("failed to resolve cast, retrying",
			slog.String("key", key.String()),
			slog.String("cast", castID),
			slog.Duration("retry_in", e.retry),
			slog.Any("error", err))
		e.scheduleAfter(key, castID, e.retry)
		return
	}
	if !ok {
		slog.Debug("cast was reconciled before it resolved",
			slog.String("key", key.String()),
			slog.String("cast", castID))
		return
	}
	e.deliver(ctx, out)
}

// resolvePending resolves the pending cast for key. An empty castID accepts
// whatever cast is pending. ok is false when there was nothing to resolve.
func (e *Engine) resolvePending(ctx context.Context, key ledger.Key, castID string) (Outcome, bool, error) {
	mult, err := e.tuning.Load()
	if err != nil {
		// the cast has to land either way; pay out at face value
		slog.Error("using default multipliers for resolution", slog.Any("error", err))
		mult = tuning.Defaults()
	}

	var out Outcome
	resolved := false
	// the pending cast is deleted only once the ledger is written, so a
	// failed write leaves it in place for a retry
	_, err = e.book.UpdateThen(ctx, key, func(l *ledger.Ledger) error {
		id, doc, ok, err := e.pending.GetPending(ctx, key)
		if err != nil {
			return err
		}
		if !ok || (castID != "" && id != castID) {
			return errStale
		}

		c, f, err := e.decodeCast(doc)
		if err != nil {
			slog.Error("discarding unreadable pending cast",
				slog.String("key", key.String()),
				slog.String("cast", id),
				slog.Any("error", err))
			l.Casting = false
			return nil
		}

		next, o := Resolve(*l, c, f, f.Value(mult.Value), false)
		*l = next
		out, resolved = o, true
		return nil
	}, func(ledger.Ledger) error {
		// a leftover record is swept by the next reconcile and overwritten
		// by the next cast
		if err := e.pending.DeletePending(ctx, key); err != nil {
			slog.Warn("failed to delete resolved pending cast",
				slog.String("key", key.String()),
				slog.Any("error", err))
		}
		return nil
	})
	if errors.Is(err, errStale) {
		return Outcome{}, false, nil
	}
	if err != nil {
		return Outcome{}, false, err
	}
	return out, resolved, nil
}

func (e *Engine) decodeCast(doc []byte) (Cast, fish.Fish, error) {
	var c Cast
	if err := json.Unmarshal(doc, &c); err != nil {
		return Cast{}, fish.Fish{}, err
	}
	sp, ok := e.species.Get(c.Species)
	if !ok {
		return Cast{}, fish.Fish{}, fmt.Errorf("%w: %q", fish.ErrUnknownSpecies, c.Species)
	}
	return c, fish.Fish{Species: sp, Rarity: c.Rarity, Weight: c.Weight}, nil
}

// deliver logs the catch for the leaderboard and tells the player.
func (e *Engine) deliver(ctx context.Context, o Outcome) {
	slog.Info("cast resolved",
		slog.String("key", o.Key.String()),
		slog.String("outcome", o.Kind.String()),
		slog.String("fish", o.Fish.String()),
		slog.Float64("weight", o.Fish.Weight),
		slog.Uint64("value", uint64(o.Value)),
		slog.Bool("forced", o.Forced))

	if o.Kind == Caught && e.catches != nil {
		err := e.catches.AddCatch(ctx, fish.Catch{
			GuildId:    o.Key.Guild,
			UserId:     o.Key.User,
			SpeciesKey: o.Fish.Species.Key,
			Rarity:     o.Fish.Rarity,
			Weight:     o.Fish.Weight,
			Value:      o.Value,
			CaughtAt:   e.clk.Now(),
		})
		if err != nil {
			slog.Error("failed to record catch", slog.Any("error", err))
		}
	}
	e.notify(ctx, o)
}

// ForceCatch lands f for the player right away, as if every roll had gone
// their way. It does not touch a cast they may have in the water.
func (e *Engine) ForceCatch(ctx context.Context, key ledger.Key, channelID string, f fish.Fish) (Outcome, error) {
	mult, err := e.tuning.Load()
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	_, err = e.book.Update(ctx, key, func(l *ledger.Ledger) error {
		c := Cast{
			ID:        uuid.NewString(),
			Guild:     key.Guild,
			User:      key.User,
			ChannelID: channelID,
			Species:   f.Species.Key,
			Rarity:    f.Rarity,
			Weight:    f.Weight,
			CatchRoll: true,
			StartedAt: e.clk.Now(),
			ResolveAt: e.clk.Now(),
		}
		if rd, err := e.rods.Lookup(l.RodID, l.RodModifierID); err == nil {
			c.Rod, c.WeightLimit = rd.String(), rd.WeightLimit
		}

		var next ledger.Ledger
		next, out = Resolve(*l, c, f, f.Value(mult.Value), true)
		*l = next
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	e.deliver(ctx, out)
	return out, nil
}

// Shutdown stops every scheduled resolution, waits for running ones and
// reconciles what is left.
func (e *Engine) Shutdown(ctx context.Context) (Report, error) {
	e.mu.Lock()
	e.closed = true
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
	e.mu.Unlock()

	e.wg.Wait()
	return e.Reconcile(ctx)
}

// Scheduled is the number of casts waiting on a timer.
func (e *Engine) Scheduled() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}
