package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ecom_ops_backend/internal/models"
)

func rule(id int64, pattern, patternType, category string, priority int) models.CategorizationRule {
	return models.CategorizationRule{
		ID:          id,
		Pattern:     pattern,
		PatternType: patternType,
		Category:    category,
		Priority:    priority,
		IsActive:    true,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, int(id), 0, time.UTC),
	}
}

func TestCategorizerMatch(t *testing.T) {
	inactive := rule(9, "UBER", models.PatternTypeContains, "Travel", 100)
	inactive.IsActive = false

	engine := NewCategorizer([]models.CategorizationRule{
		rule(1, "shippo", models.PatternTypeContains, "Shipping", 1),
		rule(2, "^amzn mktp", models.PatternTypeRegex, "Supplies", 5),
		rule(3, "adobe creative cloud", models.PatternTypeExact, "Software", 3),
		rule(4, "([a-z", models.PatternTypeRegex, "Broken", 50),
		rule(5, strings.Repeat("a", 300), models.PatternTypeRegex, "TooLong", 60),
		inactive,
	}, 256)

	cases := []struct {
		description string
		vendor      string
		want        string
	}{
		{"", "SHIPPO INC", "Shipping"},
		{"Label purchase", "shippo", "Shipping"},
		{"AMZN Mktp US*2K3", "", "Supplies"},
		{"Adobe Creative Cloud", "", "Software"},
		{"Adobe Creative Cloud monthly", "", ""},
		{"UBER TRIP", "", ""},
		{strings.Repeat("a", 400), "", ""},
		{"Coffee", "Blue Bottle", ""},
	}
	for _, tc := range cases {
		got, _ := engine.Categorize(tc.description, tc.vendor)
		if got != tc.want {
			t.Errorf("Categorize(%q, %q) = %q, want %q", tc.description, tc.vendor, got, tc.want)
		}
	}
}

func TestCategorizerPriorityOrder(t *testing.T) {
	engine := NewCategorizer([]models.CategorizationRule{
		rule(1, "AMAZON", models.PatternTypeContains, "Supplies", 1),
		rule(2, "AMAZON WEB SERVICES", models.PatternTypeContains, "Hosting", 10),
	}, 0)
	if got, _ := engine.Categorize("AMAZON WEB SERVICES", "AWS"); got != "Hosting" {
		t.Fatalf("expected higher priority rule to win, got %q", got)
	}

	tied := NewCategorizer([]models.CategorizationRule{
		rule(1, "AMAZON", models.PatternTypeContains, "Older", 1),
		rule(2, "AMAZON", models.PatternTypeContains, "Newer", 1),
	}, 0)
	if got, _ := tied.Categorize("AMAZON", ""); got != "Newer" {
		t.Fatalf("expected newest rule on ties, got %q", got)
	}
}

func TestRuleServiceCreateValidation(t *testing.T) {
	svc := NewRuleService(newTestStore(t, nil).Rules, 0)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateRuleRequest
	}{
		{"missing pattern", CreateRuleRequest{Category: "Shipping"}},
		{"missing category", CreateRuleRequest{Pattern: "SHIPPO"}},
		{"bad pattern type", CreateRuleRequest{Pattern: "SHIPPO", Category: "Shipping", PatternType: "fuzzy"}},
		{"bad regex", CreateRuleRequest{Pattern: "([a-z", Category: "X", PatternType: "regex"}},
		{"regex too long", CreateRuleRequest{Pattern: strings.Repeat("a", 300), Category: "X", PatternType: "regex"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.req); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestRuleServiceAutoPriorityAndTest(t *testing.T) {
	svc := NewRuleService(newTestStore(t, nil).Rules, 0)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateRuleRequest{Pattern: "SHIPPO", Category: "Shipping"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.PatternType != models.PatternTypeContains || first.Priority != 1 {
		t.Fatalf("unexpected defaults: %+v", first)
	}
	second, err := svc.Create(ctx, CreateRuleRequest{Pattern: "SHIPPO LABEL", Category: "Labels"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if second.Priority != 2 {
		t.Fatalf("expected priority max+1 = 2, got %d", second.Priority)
	}

	res, err := svc.Test(ctx, TestRuleRequest{Description: "Shippo label 123"})
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if !res.Matched || *res.Category != "Labels" {
		t.Fatalf("expected Labels, got %+v", res)
	}

	off := false
	if _, err := svc.Update(ctx, second.ID, models.RulePatch{IsActive: &off}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	res, _ = svc.Test(ctx, TestRuleRequest{Description: "Shippo label 123"})
	if *res.Category != "Shipping" {
		t.Fatalf("inactive rule still matched: %+v", res)
	}

	badType := "nope"
	if _, err := svc.Update(ctx, first.ID, models.RulePatch{PatternType: &badType}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := svc.Update(ctx, 404, models.RulePatch{}); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	res, _ = svc.Test(ctx, TestRuleRequest{Description: "Shippo label 123"})
	if res.Matched {
		t.Fatalf("expected no match after delete, got %+v", res)
	}
}
