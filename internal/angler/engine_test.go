package angler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sk3pz/anglerbot/internal/clock"
	"github.com/sk3pz/anglerbot/internal/fish"
	"github.com/sk3pz/anglerbot/internal/ledger"
	"github.com/sk3pz/anglerbot/internal/rarity"
	"github.com/sk3pz/anglerbot/internal/rod"
	"github.com/sk3pz/anglerbot/internal/roll"
	"github.com/sk3pz/anglerbot/internal/shop"
	"github.com/sk3pz/anglerbot/internal/tuning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

type pendingDoc struct {
	id  string
	doc []byte
}

type fakeStore struct {
	mu      sync.Mutex
	pending map[ledger.Key]pendingDoc
	catches []fish.Catch
	shop    shop.State
	shopOK  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{pending: map[ledger.Key]pendingDoc{}}
}

func (f *fakeStore) PutPending(_ context.Context, key ledger.Key, castID string, doc []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[key] = pendingDoc{id: castID, doc: doc}
	return nil
}

func (f *fakeStore) GetPending(_ context.Context, key ledger.Key) (string, []byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pending[key]
	return p.id, p.doc, ok, nil
}

func (f *fakeStore) DeletePending(_ context.Context, key ledger.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, key)
	return nil
}

func (f *fakeStore) PendingKeys(context.Context) ([]ledger.Key, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ledger.Key, 0, len(f.pending))
	for k := range f.pending {
		out = append(out, k)
	}
	return out, nil
}

func (f *fakeStore) AddCatch(_ context.Context, c fish.Catch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catches = append(f.catches, c)
	return nil
}

func (f *fakeStore) LoadShop(context.Context) (shop.State, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shop, f.shopOK, nil
}

func (f *fakeStore) SaveShop(_ context.Context, st shop.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shop, f.shopOK = st, true
	return nil
}

func (f *fakeStore) hasPending(key ledger.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[key]
	return ok
}

func (f *fakeStore) catchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.catches)
}

// switchTuning fails Load while err is set.
type switchTuning struct {
	mu  sync.Mutex
	m   tuning.Multipliers
	err error
}

func (s *switchTuning) Load() (tuning.Multipliers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return tuning.Multipliers{}, &tuning.ConfigError{Path: "multipliers.json", Err: s.err}
	}
	return s.m, nil
}

func (s *switchTuning) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// flakyLedgers fails the next PutLedger after failNextWrite.
type flakyLedgers struct {
	*ledger.MemoryStore
	mu   sync.Mutex
	fail bool
}

func (f *flakyLedgers) failNextWrite() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = true
}

func (f *flakyLedgers) PutLedger(ctx context.Context, key ledger.Key, l ledger.Ledger) error {
	f.mu.Lock()
	fail := f.fail
	f.fail = false
	f.mu.Unlock()
	if fail {
		return errors.New("database is locked")
	}
	return f.MemoryStore.PutLedger(ctx, key, l)
}

type harness struct {
	engine   *Engine
	store    *fakeStore
	ledgers  *ledger.MemoryStore
	flaky    *flakyLedgers
	book     *ledger.Book
	tuning   *switchTuning
	clk      *clock.Fake
	outcomes chan Outcome
}

func testCatalog(t *testing.T) *rod.Catalog {
	t.Helper()
	c, err := rod.NewCatalog(rod.CatalogJSON{
		Starter: rod.StarterJSON{Type: "with String", Material: "Stick"},
		Types: []rod.Component{
			{Name: "with String", Rarity: rarity.Common, Stats: rod.Stats{CatchChance: 300, CatchRate: 40, Depth: 5, WeightLimit: 12}},
			{Name: "Pole", Rarity: rarity.Uncommon, Stats: rod.Stats{Cost: 120, CatchChance: 450, CatchRate: 30, Depth: 25, WeightLimit: 35}},
		},
		Materials: []rod.Component{
			{Name: "Stick", Rarity: rarity.Common},
			{Name: "Oak", Rarity: rarity.Uncommon, Stats: rod.Stats{Cost: 60, CatchChance: 40, CatchRate: 5, Depth: 10, WeightLimit: 15}},
		},
		Modifiers: []rod.Modifier{
			{Name: "Lucky", Stats: rod.Stats{CatchChance: 100}},
		},
	})
	require.NoError(t, err)
	return c
}

func testRegistry(t *testing.T) *fish.Registry {
	t.Helper()
	reg, err := fish.NewRegistry([]fish.SpeciesJSON{
		{Key: "carp", Name: "Carp", MinWeight: 1, MaxWeight: 40, AvgWeight: 8, Depth: 5, Rarity: rarity.Common, WeightBias: 2},
		{Key: "pike", Name: "Northern Pike", MinWeight: 3, MaxWeight: 45, AvgWeight: 10, Depth: 20, Rarity: rarity.Rare, WeightBias: 2},
	})
	require.NoError(t, err)
	return reg
}

// newHarness builds an engine whose casts always draw a carp. src decides
// the weight, catch time and rolls.
func newHarness(t *testing.T, src roll.Source, policy ReconcilePolicy) *harness {
	t.Helper()

	rods := testCatalog(t)
	reg := testRegistry(t)
	st := newFakeStore()
	mem := ledger.NewMemoryStore()
	flaky := &flakyLedgers{MemoryStore: mem}
	book := ledger.NewBook(flaky, rods.Starter().ID)
	clk := clock.NewFake(epoch)
	tn := &switchTuning{m: tuning.Defaults()}

	h := &harness{
		store:    st,
		ledgers:  mem,
		flaky:    flaky,
		book:     book,
		tuning:   tn,
		clk:      clk,
		outcomes: make(chan Outcome, 16),
	}
	notify := NotifierFunc(func(_ context.Context, o Outcome) {
		h.outcomes <- o
	})
	// retries are fired by hand
	h.engine = New(Config{
		Book:       book,
		Pending:    st,
		Catches:    st,
		Rods:       rods,
		Species:    reg,
		Sampler:    fish.NewSampler(reg, rarity.MustTable(map[rarity.Tier]int{rarity.Common: 1}), src),
		Shop:       shop.NewRotation(st, rods, src, clk, time.Hour),
		Tuning:     tn,
		Notifier:   notify,
		Rand:       src,
		Clock:      clk,
		Policy:     policy,
		RetryDelay: time.Hour,
	})
	t.Cleanup(func() {
		_, _ = h.engine.Shutdown(context.Background())
	})
	return h
}

func (h *harness) ledger(t *testing.T, key ledger.Key) ledger.Ledger {
	t.Helper()
	l, err := h.book.Read(context.Background(), key)
	require.NoError(t, err)
	return l
}

func (h *harness) noOutcome(t *testing.T) {
	t.Helper()
	select {
	case o := <-h.outcomes:
		t.Fatalf("unexpected outcome %s", o.Kind)
	default:
	}
}

// catchable: tier, species, catch roll 0 < 300, theft roll 99 >= 2.
func catchable() []int { return []int{0, 0, 0, 99} }

var alice = ledger.Key{Guild: "g1", User: "alice"}

func TestStartCastThenResolve(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.NewScript(catchable(), []float64{0, 0.5}), PolicyDrop)

	rc, err := h.engine.StartCast(ctx, alice, "chan")
	require.NoError(t, err)
	assert.Equal(t, "Stick with String", rc.Rod.ID)
	assert.Equal(t, "carp", rc.Cast.Species)
	assert.Equal(t, 1.0, rc.Cast.Weight)
	assert.True(t, rc.Cast.CatchRoll)
	assert.False(t, rc.Cast.StolenRoll)
	// 40s * 1.0 jitter, minus 7 lbs under average
	assert.InDelta(t, float64(39650*time.Millisecond), float64(rc.Cast.Delay), float64(time.Millisecond))
	assert.Equal(t, epoch.Add(rc.Cast.Delay), rc.Cast.ResolveAt)
	assert.Equal(t, 1, h.engine.Scheduled())

	assert.True(t, h.ledger(t, alice).Casting)
	assert.True(t, h.store.hasPending(alice))

	h.engine.fire(alice, rc.Cast.ID)

	o := <-h.outcomes
	assert.Equal(t, Caught, o.Kind)
	assert.Equal(t, uint(1), o.Value)
	assert.True(t, o.NewSpecies)
	assert.Equal(t, "chan", o.ChannelID)

	l := h.ledger(t, alice)
	assert.False(t, l.Casting)
	assert.Equal(t, uint(1), l.Money)
	assert.Equal(t, uint(1), l.FishCaught)
	assert.Equal(t, []string{"carp"}, l.SeenSpecies)
	assert.Equal(t, l, o.Ledger)
	assert.False(t, h.store.hasPending(alice))
	assert.Equal(t, 1, h.store.catchCount())
	assert.Equal(t, 0, h.engine.Scheduled())
}

func TestStartCastRejectsSecondCast(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.NewScript(catchable(), []float64{0, 0.5}), PolicyDrop)

	first, err := h.engine.StartCast(ctx, alice, "chan")
	require.NoError(t, err)
	before := h.ledger(t, alice)
	writes := h.ledgers.Writes()

	_, err = h.engine.StartCast(ctx, alice, "chan")
	assert.ErrorIs(t, err, ErrAlreadyCasting)
	assert.Equal(t, before, h.ledger(t, alice))
	assert.Equal(t, writes, h.ledgers.Writes())

	id, _, ok, err := h.store.GetPending(ctx, alice)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Cast.ID, id)
	assert.Equal(t, 1, h.engine.Scheduled())
}

func TestResolveOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		ints   []int
		floats []float64
		want   OutcomeKind
	}{
		// 1 + 39*0.81 = 32.6 lbs against a 12 lb limit
		{"line break", catchable(), []float64{0.9, 0.5}, LineBreak},
		{"escaped", []int{0, 0, 999, 99}, []float64{0, 0.5}, Escaped},
		{"stolen", []int{0, 0, 0, 0}, []float64{0, 0.5}, Stolen},
		{"caught", catchable(), []float64{0, 0.5}, Caught},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, roll.NewScript(tt.ints, tt.floats), PolicyDrop)

			rc, err := h.engine.StartCast(ctx, alice, "chan")
			require.NoError(t, err)
			h.engine.fire(alice, rc.Cast.ID)

			o := <-h.outcomes
			assert.Equal(t, tt.want, o.Kind)

			l := h.ledger(t, alice)
			assert.False(t, l.Casting)
			if tt.want == Caught {
				assert.Equal(t, uint(1), l.FishCaught)
				return
			}
			assert.Zero(t, l.Money)
			assert.Zero(t, l.FishCaught)
			assert.Empty(t, l.SeenSpecies)
			assert.Zero(t, o.Value)
			assert.Zero(t, h.store.catchCount())
		})
	}
}

func TestStaleTimerDoesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.NewScript(catchable(), []float64{0, 0.5}), PolicyDrop)

	rc, err := h.engine.StartCast(ctx, alice, "chan")
	require.NoError(t, err)

	// a timer from some earlier cast
	h.engine.fire(alice, "not-this-cast")
	h.noOutcome(t)
	assert.True(t, h.ledger(t, alice).Casting)
	assert.True(t, h.store.hasPending(alice))

	r, err := h.engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Dropped: 1}, r)

	writes := h.ledgers.Writes()
	h.engine.fire(alice, rc.Cast.ID)
	h.noOutcome(t)
	assert.Equal(t, writes, h.ledgers.Writes())

	l := h.ledger(t, alice)
	assert.False(t, l.Casting)
	assert.Zero(t, l.Money)
}

func TestReconcileDropIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.NewScript(catchable(), []float64{0, 0.5}), PolicyDrop)
	bob := ledger.Key{Guild: "g1", User: "bob"}

	_, err := h.engine.StartCast(ctx, alice, "chan")
	require.NoError(t, err)
	_, err = h.engine.StartCast(ctx, bob, "chan")
	require.NoError(t, err)

	r, err := h.engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Dropped: 2}, r)

	for _, key := range []ledger.Key{alice, bob} {
		l := h.ledger(t, key)
		assert.False(t, l.Casting)
		assert.Zero(t, l.Money)
		assert.False(t, h.store.hasPending(key))
	}
	h.noOutcome(t)

	r, err = h.engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{}, r)
}

func TestReconcileReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.NewScript(catchable(), []float64{0, 0.5}), PolicyReplay)

	_, err := h.engine.StartCast(ctx, alice, "chan")
	require.NoError(t, err)

	r, err := h.engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Replayed: 1}, r)

	o := <-h.outcomes
	assert.Equal(t, Caught, o.Kind)

	l := h.ledger(t, alice)
	assert.False(t, l.Casting)
	assert.Equal(t, uint(1), l.Money)

	r, err = h.engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{}, r)
	assert.Equal(t, uint(1), h.ledger(t, alice).Money)
	h.noOutcome(t)
}

func TestReconcileReplayWithoutPendingDrops(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.NewScript(catchable(), []float64{0, 0.5}), PolicyReplay)

	_, err := h.book.Update(ctx, alice, func(l *ledger.Ledger) error {
		l.Casting = true
		return nil
	})
	require.NoError(t, err)

	r, err := h.engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Dropped: 1}, r)
	assert.False(t, h.ledger(t, alice).Casting)
}

func TestReconcileRemovesStrayPending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.NewScript(catchable(), []float64{0, 0.5}), PolicyDrop)

	require.NoError(t, h.store.PutPending(ctx, alice, "orphan", []byte(`{}`)))

	r, err := h.engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Stray: 1}, r)
	assert.False(t, h.store.hasPending(alice))
}

func TestUnreadablePendingClearsCasting(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.NewScript(catchable(), []float64{0, 0.5}), PolicyDrop)

	_, err := h.book.Update(ctx, alice, func(l *ledger.Ledger) error {
		l.Casting = true
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, h.store.PutPending(ctx, alice, "bad", []byte(`{"species":"kraken"}`)))

	h.engine.fire(alice, "bad")
	h.noOutcome(t)
	assert.False(t, h.ledger(t, alice).Casting)
	assert.False(t, h.store.hasPending(alice))
}

func TestForceCatchLeavesCastAlone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.NewScript(catchable(), []float64{0, 0.5}), PolicyDrop)

	rc, err := h.engine.StartCast(ctx, alice, "chan")
	require.NoError(t, err)

	pike, ok := h.engine.species.Get("pike")
	require.True(t, ok)
	// heavier than the starter can hold
	o, err := h.engine.ForceCatch(ctx, alice, "chan", fish.Fish{Species: pike, Rarity: rarity.Rare, Weight: 20})
	require.NoError(t, err)
	assert.Equal(t, Caught, o.Kind)
	assert.True(t, o.Forced)
	assert.Equal(t, uint(50), o.Value)
	<-h.outcomes

	l := h.ledger(t, alice)
	assert.True(t, l.Casting)
	assert.Equal(t, uint(50), l.Money)
	assert.Equal(t, []string{"pike"}, l.SeenSpecies)

	h.engine.fire(alice, rc.Cast.ID)
	o = <-h.outcomes
	assert.Equal(t, Caught, o.Kind)

	l = h.ledger(t, alice)
	assert.False(t, l.Casting)
	assert.Equal(t, uint(51), l.Money)
	assert.Equal(t, uint(2), l.FishCaught)
}

func TestBrokenTuning(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.NewScript(catchable(), []float64{0, 0.5}), PolicyDrop)

	rc, err := h.engine.StartCast(ctx, alice, "chan")
	require.NoError(t, err)

	h.tuning.fail(errors.New("unexpected end of JSON input"))

	_, err = h.engine.StartCast(ctx, ledger.Key{Guild: "g1", User: "bob"}, "chan")
	var cfgErr *tuning.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "The pond is being restocked, please try again later!", UserMessage(err))

	// a cast already in the water still lands
	h.engine.fire(alice, rc.Cast.ID)
	o := <-h.outcomes
	assert.Equal(t, Caught, o.Kind)
	assert.False(t, h.ledger(t, alice).Casting)
}

func TestShutdownDropsAndCloses(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.NewScript(catchable(), []float64{0, 0.5}), PolicyDrop)

	_, err := h.engine.StartCast(ctx, alice, "chan")
	require.NoError(t, err)

	r, err := h.engine.Shutdown(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Dropped: 1}, r)
	assert.Equal(t, 0, h.engine.Scheduled())
	assert.False(t, h.ledger(t, alice).Casting)

	_, err = h.engine.StartCast(ctx, alice, "chan")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTimerResolvesCast(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.NewScript(catchable(), []float64{0, 0.5}), PolicyDrop)
	h.engine.minDelay = 20 * time.Millisecond
	h.tuning.m.CastTimeDivisor = 100000

	rc, err := h.engine.StartCast(ctx, alice, "chan")
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, rc.Cast.Delay)

	var o Outcome
	require.Eventually(t, func() bool {
		select {
		case o = <-h.outcomes:
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Caught, o.Kind)
	assert.False(t, h.ledger(t, alice).Casting)
}

func TestCastDelay(t *testing.T) {
	assert.Equal(t, 11*time.Second, CastDelay(10, 20, 1, time.Second))
	assert.Equal(t, 5500*time.Millisecond, CastDelay(10, 20, 2, time.Second))
	assert.Equal(t, 11*time.Second, CastDelay(10, 20, 0, time.Second))
	assert.Equal(t, time.Second, CastDelay(1, -100, 1, time.Second))
	assert.Equal(t, 3*time.Second, CastDelay(0.1, 0, 1, 3*time.Second))
}

func TestFailedResolveWriteIsRetried(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.NewScript(catchable(), []float64{0, 0.5}), PolicyDrop)

	rc, err := h.engine.StartCast(ctx, alice, "chan")
	require.NoError(t, err)

	h.flaky.failNextWrite()
	h.engine.fire(alice, rc.Cast.ID)
	h.noOutcome(t)

	// nothing was lost: the cast is still pending and a retry is queued
	assert.True(t, h.ledger(t, alice).Casting)
	assert.True(t, h.store.hasPending(alice))
	assert.Equal(t, 1, h.engine.Scheduled())

	h.engine.fire(alice, rc.Cast.ID)
	o := <-h.outcomes
	assert.Equal(t, Caught, o.Kind)
	assert.False(t, h.ledger(t, alice).Casting)
	assert.False(t, h.store.hasPending(alice))

	_, err = h.engine.StartCast(ctx, alice, "chan")
	assert.NoError(t, err)
}

func TestFailedDropKeepsPending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.NewScript(catchable(), []float64{0, 0.5}), PolicyDrop)

	_, err := h.engine.StartCast(ctx, alice, "chan")
	require.NoError(t, err)

	h.flaky.failNextWrite()
	_, err = h.engine.Reconcile(ctx)
	assert.Error(t, err)
	assert.True(t, h.ledger(t, alice).Casting)
	assert.True(t, h.store.hasPending(alice))

	r, err := h.engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Dropped: 1}, r)
	assert.False(t, h.store.hasPending(alice))
}

func TestConcurrentCastsOneWins(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, roll.New(nil), PolicyDrop)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		receipts []Receipt
		refused  int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rc, err := h.engine.StartCast(ctx, alice, "chan")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrAlreadyCasting)
				refused++
				return
			}
			receipts = append(receipts, rc)
		}()
	}
	wg.Wait()

	require.Len(t, receipts, 1)
	assert.Equal(t, 19, refused)
	assert.Equal(t, 1, h.engine.Scheduled())

	keys, err := h.store.PendingKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ledger.Key{alice}, keys)

	id, _, ok, err := h.store.GetPending(ctx, alice)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, receipts[0].Cast.ID, id)
}
