package services

import (
	"errors"
	"testing"
)

func TestBuildBudget(t *testing.T) {
	weights := map[string]int{
		"League phase":   2,
		"Quarter-finals": 5,
		"Final":          10,
	}
	gamedays := []GamedayInfo{
		{Gameday: "2025-01-21", NumGames: 6, Stage: "League phase"},
		{Gameday: "2025-04-08", NumGames: 2, Stage: "Quarter-finals"},
		{Gameday: "2025-05-31", NumGames: 1, Stage: "Final"},
		{Gameday: "2025-06-01", NumGames: 3, Stage: "Friendly"},
	}

	budget := BuildBudget(gamedays, weights)

	if budget["2025-01-21"] != 12 {
		t.Errorf("Expected 12 for league phase day, got %d", budget["2025-01-21"])
	}
	if budget["2025-04-08"] != 10 {
		t.Errorf("Expected 10 for quarter-final day, got %d", budget["2025-04-08"])
	}
	if budget["2025-05-31"] != 10 {
		t.Errorf("Expected 10 for final day, got %d", budget["2025-05-31"])
	}
	if budget["2025-06-01"] != 0 {
		t.Errorf("Expected 0 for unknown stage, got %d", budget["2025-06-01"])
	}
}

func TestApplyBudgetDeltaSpendAndRefund(t *testing.T) {
	budget := map[string]int{"2025-01-21": 10}

	remaining, err := ApplyBudgetDelta(budget, "2025-01-21", -4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if remaining != 6 {
		t.Errorf("Expected 6 after spending 4, got %d", remaining)
	}

	remaining, err = ApplyBudgetDelta(budget, "2025-01-21", 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if remaining != 10 {
		t.Errorf("Expected 10 after refund, got %d", remaining)
	}
}

func TestApplyBudgetDeltaRejectsOverdraft(t *testing.T) {
	budget := map[string]int{"2025-01-21": 3}

	_, err := ApplyBudgetDelta(budget, "2025-01-21", -4)
	if !errors.Is(err, ErrInsufficientBudget) {
		t.Fatalf("Expected ErrInsufficientBudget, got %v", err)
	}
	if budget["2025-01-21"] != 3 {
		t.Errorf("Budget must not change on rejected delta, got %d", budget["2025-01-21"])
	}
}

func TestApplyBudgetDeltaUnknownGameday(t *testing.T) {
	budget := map[string]int{"2025-01-21": 3}

	_, err := ApplyBudgetDelta(budget, "2025-12-31", -1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for unknown gameday, got %v", err)
	}
}

func TestApplyBudgetDeltaExactBalance(t *testing.T) {
	budget := map[string]int{"2025-01-21": 5}

	remaining, err := ApplyBudgetDelta(budget, "2025-01-21", -5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected 0 after spending full budget, got %d", remaining)
	}
}
