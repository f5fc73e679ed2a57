package services

import (
	"bytes"
	"encoding/json"
	"testing"

	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/internal/repositories/memory"
	"ecom_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

const testToday = "2024-02-01"

func newTestStore(t *testing.T, seed *memory.Seed) *repositories.Store {
	t.Helper()
	store, err := memory.NewStore(seed)
	if err != nil {
		t.Fatalf("memory.NewStore: %v", err)
	}
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func payloadFromJSON(t *testing.T, raw string) OrderPayload {
	t.Helper()
	d := json.NewDecoder(bytes.NewReader([]byte(raw)))
	d.UseNumber()
	var p OrderPayload
	if err := d.Decode(&p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return p
}

type testServices struct {
	store      *repositories.Store
	costs      CostLookupService
	rules      RuleService
	affiliates AffiliateService
	orders     OrderService
	imports    ImportService
	guard      *SyncGuard
}

func newTestServices(t *testing.T, seed *memory.Seed, source OrderSource) *testServices {
	t.Helper()
	store := newTestStore(t, seed)
	clock := utils.FixedClock(testToday)
	guard := NewSyncGuard(nil, 0)
	costs := NewCostLookupService(store.CostLookups, nil)
	rules := NewRuleService(store.Rules, 0)
	affiliates := NewAffiliateService(store, DefaultAffiliateRate, clock, guard)
	return &testServices{
		store:      store,
		costs:      costs,
		rules:      rules,
		affiliates: affiliates,
		orders:     NewOrderService(store, costs, affiliates, source, guard, 0),
		imports:    NewImportService(store, rules, clock),
		guard:      guard,
	}
}
