package services

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestComputeSideBetState(t *testing.T) {
	deadline := time.Date(2025, 1, 21, 18, 0, 0, 0, time.UTC)

	if state := ComputeSideBetState(deadline.Add(-time.Minute), deadline); state != BetStateEditable {
		t.Errorf("Expected editable before deadline, got '%s'", state)
	}
	if state := ComputeSideBetState(deadline.Add(time.Minute), deadline); state != BetStateLocked {
		t.Errorf("Expected locked after deadline, got '%s'", state)
	}
}

func TestValidateChoice(t *testing.T) {
	if err := ValidateChoice(QuestionChampion, json.RawMessage(`"Real Madrid"`)); err != nil {
		t.Errorf("Expected valid champion choice, got %v", err)
	}
	if err := ValidateChoice(QuestionChampion, json.RawMessage(`""`)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty champion choice, got %v", err)
	}

	if err := ValidateChoice(QuestionTopScorer, json.RawMessage(`{"player": "Harry Kane"}`)); err != nil {
		t.Errorf("Expected valid scorer choice, got %v", err)
	}
	if err := ValidateChoice(QuestionTopAssister, json.RawMessage(`{}`)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for missing player, got %v", err)
	}

	if err := ValidateChoice(QuestionQualifiers, json.RawMessage(`{"0": "Liverpool", "1": "Barcelona"}`)); err != nil {
		t.Errorf("Expected valid qualifiers choice, got %v", err)
	}
	if err := ValidateChoice(QuestionQualifiers, json.RawMessage(`{}`)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty qualifiers choice, got %v", err)
	}

	if err := ValidateChoice("Best Goalkeeper", json.RawMessage(`"Courtois"`)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for unknown question, got %v", err)
	}
}

func TestCalculateChampionReward(t *testing.T) {
	reward := CalculateChampionReward(json.RawMessage(`"Real Madrid"`), json.RawMessage(`"Real Madrid"`), 50)
	if reward != 50 {
		t.Errorf("Expected 50 for correct champion, got %d", reward)
	}

	reward = CalculateChampionReward(json.RawMessage(` "Real Madrid" `), json.RawMessage(`"Real Madrid"`), 50)
	if reward != 50 {
		t.Errorf("Expected whitespace differences to be ignored, got %d", reward)
	}

	reward = CalculateChampionReward(json.RawMessage(`"Arsenal"`), json.RawMessage(`"Real Madrid"`), 50)
	if reward != 0 {
		t.Errorf("Expected 0 for wrong champion, got %d", reward)
	}
}

func TestCalculatePlayersRewardTiesAtMax(t *testing.T) {
	answer := []string{"Harry Kane", "Raphinha"}

	reward := CalculatePlayersReward(json.RawMessage(`{"player": "Raphinha"}`), answer, 20)
	if reward != 20 {
		t.Errorf("Expected 20 for any tied top scorer, got %d", reward)
	}

	reward = CalculatePlayersReward(json.RawMessage(`{"player": "Lewandowski"}`), answer, 20)
	if reward != 0 {
		t.Errorf("Expected 0 for wrong player, got %d", reward)
	}
}

func TestCalculateQualifiersReward(t *testing.T) {
	answer := []string{"A", "B", "C"}
	choice := map[string]string{"0": "A", "1": "C", "2": "B"}

	// A 位置全对 20 分，C 和 B 猜中但位置不对各 10 分
	reward := CalculateQualifiersReward(choice, answer)
	if reward != 40 {
		t.Errorf("Expected 40, got %d", reward)
	}
}

func TestCalculateQualifiersRewardAllCorrect(t *testing.T) {
	answer := []string{"A", "B", "C"}
	choice := map[string]string{"0": "A", "1": "B", "2": "C"}

	reward := CalculateQualifiersReward(choice, answer)
	if reward != 60 {
		t.Errorf("Expected 60 for perfect ordering, got %d", reward)
	}
}

func TestCalculateQualifiersRewardNoHits(t *testing.T) {
	answer := []string{"A", "B", "C"}
	choice := map[string]string{"0": "X", "1": "Y", "2": "Z"}

	reward := CalculateQualifiersReward(choice, answer)
	if reward != 0 {
		t.Errorf("Expected 0 with no correct teams, got %d", reward)
	}
}

func TestRankQualifiers(t *testing.T) {
	standings := []qualifierStanding{
		{Name: "A", Points: 10, GoalDifference: 2},
		{Name: "B", Points: 12, GoalDifference: -1},
		{Name: "C", Points: 10, GoalDifference: 5},
		{Name: "D", Points: 3, GoalDifference: 0},
	}

	ranked := RankQualifiers(standings)
	expected := []string{"B", "C", "A", "D"}
	if len(ranked) != len(expected) {
		t.Fatalf("Expected %d teams, got %d", len(expected), len(ranked))
	}
	for i, name := range expected {
		if ranked[i] != name {
			t.Errorf("Expected '%s' at position %d, got '%s'", name, i, ranked[i])
		}
	}
}

func TestAnswerReady(t *testing.T) {
	// 空切片序列化为 JSON null，不能当作已计算的答案
	var none []string
	raw, err := json.Marshal(none)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if answerReady(raw) {
		t.Errorf("Expected marshaled nil answer %q to be treated as not ready", raw)
	}

	if answerReady(nil) {
		t.Error("Expected missing answer to be treated as not ready")
	}
	if answerReady(json.RawMessage(`[]`)) {
		t.Error("Expected empty list answer to be treated as not ready")
	}
	if !answerReady(json.RawMessage(`["Harry Kane"]`)) {
		t.Error("Expected player list answer to be ready")
	}
	if !answerReady(json.RawMessage(`"Real Madrid"`)) {
		t.Error("Expected champion answer to be ready")
	}
}

func TestRankQualifiersTopEight(t *testing.T) {
	var standings []qualifierStanding
	for i := 0; i < 12; i++ {
		standings = append(standings, qualifierStanding{
			Name:   string(rune('A' + i)),
			Points: 24 - i,
		})
	}

	ranked := RankQualifiers(standings)
	if len(ranked) != 8 {
		t.Fatalf("Expected top 8, got %d", len(ranked))
	}
	if ranked[0] != "A" || ranked[7] != "H" {
		t.Errorf("Expected A..H ordering, got %v", ranked)
	}
}
