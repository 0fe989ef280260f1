package services

import (
	"encoding/json"
	"testing"
)

func TestParseScorePair(t *testing.T) {
	home, away := parseScorePair("2 - 1")
	if home == nil || away == nil {
		t.Fatal("Expected both scores to parse")
	}
	if *home != 2 || *away != 1 {
		t.Errorf("Expected 2-1, got %d-%d", *home, *away)
	}

	home, away = parseScorePair("0-0")
	if home == nil || away == nil || *home != 0 || *away != 0 {
		t.Error("Expected 0-0 to parse")
	}

	home, away = parseScorePair("")
	if home != nil || away != nil {
		t.Error("Expected nil scores for empty string")
	}

	home, away = parseScorePair("postponed")
	if home != nil || away != nil {
		t.Error("Expected nil scores for non-score text")
	}
}

func TestParseOddsValue(t *testing.T) {
	if v := parseOddsValue(json.RawMessage(`2.35`)); v == nil || *v != 2.35 {
		t.Errorf("Expected 2.35 from number, got %v", v)
	}
	if v := parseOddsValue(json.RawMessage(`"3.10"`)); v == nil || *v != 3.10 {
		t.Errorf("Expected 3.10 from string, got %v", v)
	}
	if v := parseOddsValue(json.RawMessage(`null`)); v != nil {
		t.Errorf("Expected nil for null, got %v", v)
	}
	if v := parseOddsValue(nil); v != nil {
		t.Errorf("Expected nil for missing field, got %v", v)
	}
	// 小于 1 的赔率是数据错误
	if v := parseOddsValue(json.RawMessage(`0.5`)); v != nil {
		t.Errorf("Expected nil for odds below 1, got %v", v)
	}
}
