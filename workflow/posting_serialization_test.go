package workflow

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They validate the intended
// posting semantics:
// - per-store serialization keeps the stock check + decrement atomic
// - a credit note burns open debts oldest first and never partially
//
// Full DB integration tests live in models/ledger_regression_test.go
// (INTEGRATION_TESTS=1, requires docker + MySQL).

type fakeLedger struct {
	muByStore map[string]*sync.Mutex
	mu        sync.Mutex
	stock     map[string]int
	sold      map[string]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		muByStore: map[string]*sync.Mutex{},
		stock:     map[string]int{},
		sold:      map[string]int{},
	}
}

// sell mirrors the recorder: lock the store, check, decrement.
func (l *fakeLedger) sell(store string, qty int) bool {
	l.mu.Lock()
	sm := l.muByStore[store]
	if sm == nil {
		sm = &sync.Mutex{}
		l.muByStore[store] = sm
	}
	l.mu.Unlock()

	sm.Lock()
	defer sm.Unlock()

	if l.stock[store] < qty {
		return false
	}
	l.stock[store] -= qty
	l.sold[store] += qty
	return true
}

func TestPosting_PerStoreSerialization_KeepsStockNonNegative(t *testing.T) {
	for run := 0; run < 100; run++ {
		l := newFakeLedger()
		l.stock["toko-1"] = 10

		var wg sync.WaitGroup
		for i := 0; i < 30; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.sell("toko-1", 1)
			}()
		}
		wg.Wait()

		if l.stock["toko-1"] < 0 {
			t.Fatalf("run=%d stock went negative: %d", run, l.stock["toko-1"])
		}
		if l.sold["toko-1"] != 10 {
			t.Fatalf("run=%d expected exactly 10 sold, got %d", run, l.sold["toko-1"])
		}
	}
}

func TestPosting_UnrelatedStoresDoNotInterfere(t *testing.T) {
	l := newFakeLedger()
	l.stock["toko-1"] = 5
	l.stock["toko-2"] = 5

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				l.sell("toko-1", 1)
			} else {
				l.sell("toko-2", 1)
			}
		}(i)
	}
	wg.Wait()

	if l.sold["toko-1"] != 5 || l.sold["toko-2"] != 5 {
		t.Fatalf("expected 5 sold per store, got toko-1=%d toko-2=%d",
			l.sold["toko-1"], l.sold["toko-2"])
	}
}

// planBurn mirrors burnDebtsTx: oldest first, all or nothing.
func planBurn(remaining []decimal.Decimal, note decimal.Decimal) ([]decimal.Decimal, bool) {
	total := decimal.Zero
	for _, r := range remaining {
		total = total.Add(r)
	}
	if note.GreaterThan(total) {
		return nil, false
	}
	burns := make([]decimal.Decimal, len(remaining))
	left := note
	for i, r := range remaining {
		if !left.IsPositive() {
			break
		}
		burns[i] = decimal.Min(left, r)
		left = left.Sub(burns[i])
	}
	return burns, true
}

func TestCreditNote_BurnsOldestFirst(t *testing.T) {
	remaining := []decimal.Decimal{
		decimal.NewFromInt(100_000),
		decimal.NewFromInt(200_000),
	}

	burns, ok := planBurn(remaining, decimal.NewFromInt(150_000))
	if !ok {
		t.Fatal("expected burn to fit")
	}
	if !burns[0].Equal(decimal.NewFromInt(100_000)) {
		t.Fatalf("oldest debt burn: want 100000, got %s", burns[0])
	}
	if !burns[1].Equal(decimal.NewFromInt(50_000)) {
		t.Fatalf("newer debt burn: want 50000, got %s", burns[1])
	}
}

func TestCreditNote_RejectsWhenNoteExceedsTotalDebt(t *testing.T) {
	remaining := []decimal.Decimal{
		decimal.NewFromInt(100_000),
		decimal.NewFromInt(50_000),
	}

	if _, ok := planBurn(remaining, decimal.NewFromInt(150_001)); ok {
		t.Fatal("expected burn to be rejected")
	}
	// Exact fit clears everything.
	burns, ok := planBurn(remaining, decimal.NewFromInt(150_000))
	if !ok {
		t.Fatal("exact fit rejected")
	}
	for i, b := range burns {
		if !b.Equal(remaining[i]) {
			t.Fatalf("debt %d not fully burned: %s of %s", i, b, remaining[i])
		}
	}
}
