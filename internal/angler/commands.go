package angler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sk3pz/anglerbot/internal/fish"
	"github.com/sk3pz/anglerbot/internal/ledger"
	"github.com/sk3pz/anglerbot/internal/rod"
	"github.com/sk3pz/anglerbot/internal/shop"
)

func (e *Engine) Balance(ctx context.Context, key ledger.Key) (uint, error) {
	l, err := e.book.Read(ctx, key)
	if err != nil {
		return 0, err
	}
	return l.Money, nil
}

type Profile struct {
	Ledger       ledger.Ledger
	Rod          rod.Rod
	SpeciesTotal int
}

func (e *Engine) Profile(ctx context.Context, key ledger.Key) (Profile, error) {
	l, err := e.book.Read(ctx, key)
	if err != nil {
		return Profile{}, err
	}
	rd, err := e.rods.Lookup(l.RodID, l.RodModifierID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Ledger: l, Rod: rd, SpeciesTotal: e.species.Count()}, nil
}

type Bestiary struct {
	Seen  []fish.Species
	Total int
}

func (e *Engine) Bestiary(ctx context.Context, key ledger.Key) (Bestiary, error) {
	l, err := e.book.Read(ctx, key)
	if err != nil {
		return Bestiary{}, err
	}

	b := Bestiary{Seen: make([]fish.Species, 0, len(l.SeenSpecies)), Total: e.species.Count()}
	for _, k := range l.SeenSpecies {
		sp, ok := e.species.Get(k)
		if !ok {
			slog.Warn("ledger has a species the registry does not",
				slog.String("key", key.String()),
				slog.String("species", k))
			continue
		}
		b.Seen = append(b.Seen, sp)
	}
	return b, nil
}

type ShopItem struct {
	Rod   rod.Rod
	Price uint
}

type ShopView struct {
	Items        []ShopItem
	UntilRestock time.Duration
}

func (e *Engine) Shop(ctx context.Context) (ShopView, error) {
	mult, err := e.tuning.Load()
	if err != nil {
		return ShopView{}, err
	}
	listing, err := e.shop.Listing(ctx)
	if err != nil {
		return ShopView{}, err
	}

	v := ShopView{
		Items:        make([]ShopItem, 0, len(listing.Rods)),
		UntilRestock: listing.UntilRestock(e.clk.Now()),
	}
	for _, rd := range listing.Rods {
		v.Items = append(v.Items, ShopItem{Rod: rd, Price: shop.PriceOf(rd, mult.ShopDiscount)})
	}
	return v, nil
}

// RodInfo describes the rod in a 1-based shop slot.
func (e *Engine) RodInfo(ctx context.Context, index int) (ShopItem, error) {
	mult, err := e.tuning.Load()
	if err != nil {
		return ShopItem{}, err
	}
	listing, err := e.shop.Listing(ctx)
	if err != nil {
		return ShopItem{}, err
	}
	rd, err := listing.At(index)
	if err != nil {
		return ShopItem{}, err
	}
	return ShopItem{Rod: rd, Price: shop.PriceOf(rd, mult.ShopDiscount)}, nil
}

type Purchase struct {
	Rod     rod.Rod
	Price   uint
	Balance uint
}

// Buy swaps the player's rod for the one in a 1-based shop slot. The old
// rod and any modifier on it are gone.
func (e *Engine) Buy(ctx context.Context, key ledger.Key, index int) (Purchase, error) {
	item, err := e.RodInfo(ctx, index)
	if err != nil {
		return Purchase{}, err
	}

	l, err := e.book.Update(ctx, key, func(l *ledger.Ledger) error {
		if l.Casting {
			return ErrCastInProgress
		}
		if l.Money < item.Price {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, l.Money, item.Price)
		}
		l.Money -= item.Price
		l.RodID = item.Rod.ID
		l.RodModifierID = nil
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}

	slog.Info("rod bought",
		slog.String("key", key.String()),
		slog.String("rod", item.Rod.ID),
		slog.Uint64("price", uint64(item.Price)))
	return Purchase{Rod: item.Rod, Price: item.Price, Balance: l.Money}, nil
}
