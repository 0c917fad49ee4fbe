package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

type Store interface {
	GetLedger(ctx context.Context, key Key) (Ledger, bool, error)
	PutLedger(ctx context.Context, key Key, l Ledger) error
	// CastingLedgers lists every key whose ledger has casting set.
	CastingLedgers(ctx context.Context) ([]Key, error)
}

// Book serializes every read-modify-write of a ledger on its key. Two
// updates for the same player never interleave; different players never
// wait on each other.
type Book struct {
	store   Store
	starter string
	locks   *xsync.MapOf[Key, *sync.Mutex]
}

func NewBook(store Store, starterRod string) *Book {
	return &Book{
		store:   store,
		starter: starterRod,
		locks:   xsync.NewMapOf[Key, *sync.Mutex](),
	}
}

func (b *Book) lock(key Key) func() {
	mu, _ := b.locks.LoadOrCompute(key, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

// load must be called with the key locked. Missing ledgers are created.
func (b *Book) load(ctx context.Context, key Key) (Ledger, error) {
	l, ok, err := b.store.GetLedger(ctx, key)
	if err != nil {
		return Ledger{}, fmt.Errorf("read ledger %s: %w", key, err)
	}
	if ok {
		if l.SeenSpecies == nil {
			l.SeenSpecies = []string{}
		}
		return l, nil
	}

	l = Default(b.starter)
	if err := b.store.PutLedger(ctx, key, l); err != nil {
		return Ledger{}, fmt.Errorf("create ledger %s: %w", key, err)
	}
	return l, nil
}

func (b *Book) Read(ctx context.Context, key Key) (Ledger, error) {
	unlock := b.lock(key)
	defer unlock()
	return b.load(ctx, key)
}

// Update runs fn on a copy of the ledger while holding the key and writes
// the result back. If fn returns an error nothing is written and the error
// is returned as is.
func (b *Book) Update(ctx context.Context, key Key, fn func(*Ledger) error) (Ledger, error) {
	return b.UpdateThen(ctx, key, fn, nil)
}

// UpdateThen is Update with a commit hook. then runs only once the ledger
// write has succeeded, still holding the key. An error from then is
// returned along with the committed ledger.
func (b *Book) UpdateThen(ctx context.Context, key Key, fn func(*Ledger) error, then func(Ledger) error) (Ledger, error) {
	unlock := b.lock(key)
	defer unlock()

	cur, err := b.load(ctx, key)
	if err != nil {
		return Ledger{}, err
	}

	next := cur.Clone()
	if err := fn(&next); err != nil {
		return cur, err
	}
	if err := b.store.PutLedger(ctx, key, next); err != nil {
		return cur, fmt.Errorf("write ledger %s: %w", key, err)
	}
	if then != nil {
		if err := then(next); err != nil {
			return next, err
		}
	}
	return next, nil
}

func (b *Book) Casting(ctx context.Context) ([]Key, error) {
	return b.store.CastingLedgers(ctx)
}
