package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sk3pz/anglerbot/internal/clock"
	"github.com/sk3pz/anglerbot/internal/rod"
	"github.com/sk3pz/anglerbot/internal/roll"
)

// Slots is the number of rods on sale at once.
const Slots = 6

const DefaultRestockPeriod = 24 * time.Hour

var ErrInvalidSelection = errors.New("invalid shop selection")

// State is the persisted shop.
type State struct {
	Rods      []string  `json:"rods"`
	RestockAt time.Time `json:"restockAt"`
}

type StateStore interface {
	LoadShop(ctx context.Context) (State, bool, error)
	SaveShop(ctx context.Context, s State) error
}

type Listing struct {
	Rods      []rod.Rod
	RestockAt time.Time
}

// At returns the rod in a 1-based shop slot.
func (l Listing) At(index int) (rod.Rod, error) {
	if index < 1 || index > len(l.Rods) {
		return rod.Rod{}, fmt.Errorf("%w: %d", ErrInvalidSelection, index)
	}
	return l.Rods[index-1], nil
}

func (l Listing) UntilRestock(now time.Time) time.Duration {
	if d := l.RestockAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Rotation restocks lazily: the first read at or after restockAt replaces
// the whole listing.
type Rotation struct {
	mu      sync.Mutex
	store   StateStore
	catalog *rod.Catalog
	src     roll.Source
	clk     clock.Clock
	period  time.Duration
}

func NewRotation(store StateStore, catalog *rod.Catalog, src roll.Source, clk clock.Clock, period time.Duration) *Rotation {
	if src == nil {
		src = roll.New(nil)
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if period <= 0 {
		period = DefaultRestockPeriod
	}
	return &Rotation{
		store:   store,
		catalog: catalog,
		src:     src,
		clk:     clk,
		period:  period,
	}
}

func (r *Rotation) Listing(ctx context.Context) (Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	st, ok, err := r.store.LoadShop(ctx)
	if err != nil {
		return Listing{}, fmt.Errorf("load shop: %w", err)
	}

	if ok && now.Before(st.RestockAt) {
		listing, err := r.resolve(st)
		if err == nil {
			return listing, nil
		}
		// the catalog changed under a live listing; restock early rather
		// than leave the shop broken until restockAt
		slog.Warn("shop listing no longer matches catalog, restocking",
			slog.Any("error", err))
	}

	st = r.restock(now)
	if err := r.store.SaveShop(ctx, st); err != nil {
		return Listing{}, fmt.Errorf("save shop: %w", err)
	}
	slog.Info("shop restocked",
		slog.Any("rods", st.Rods),
		slog.Time("restock_at", st.RestockAt))

	return r.resolve(st)
}

func (r *Rotation) restock(now time.Time) State {
	table := r.catalog.ShopTable()
	rods := make([]string, Slots)
	for i := range rods {
		rods[i] = r.catalog.Random(table.Pick(r.src), r.src).ID
	}
	return State{Rods: rods, RestockAt: now.Add(r.period)}
}

func (r *Rotation) resolve(st State) (Listing, error) {
	if len(st.Rods) != Slots {
		return Listing{}, fmt.Errorf("shop has %d slots, want %d", len(st.Rods), Slots)
	}
	out := Listing{Rods: make([]rod.Rod, 0, Slots), RestockAt: st.RestockAt}
	for _, id := range st.Rods {
		rd, err := r.catalog.Lookup(id, nil)
		if err != nil {
			return Listing{}, err
		}
		out.Rods = append(out.Rods, rd)
	}
	return out, nil
}

// PriceOf applies the shop discount to a rod's cost, rounding down.
func PriceOf(r rod.Rod, discount float64) uint {
	if discount == 0 || math.IsNaN(discount) {
		return r.Cost
	}
	discount = math.Min(1, math.Max(0, discount))
	return uint(math.Floor(float64(r.Cost) * (1 - discount)))
}
