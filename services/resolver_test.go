package services

import (
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestComputeGameState(t *testing.T) {
	matchTime := time.Date(2025, 6, 14, 21, 0, 0, 0, time.UTC)
	duration := 3 * time.Hour

	state := ComputeGameState(matchTime.Add(-time.Hour), matchTime, duration)
	if state != GameStateUpcoming {
		t.Errorf("Expected upcoming before kickoff, got '%s'", state)
	}

	state = ComputeGameState(matchTime, matchTime, duration)
	if state != GameStateOngoing {
		t.Errorf("Expected ongoing at kickoff, got '%s'", state)
	}

	state = ComputeGameState(matchTime.Add(2*time.Hour), matchTime, duration)
	if state != GameStateOngoing {
		t.Errorf("Expected ongoing during match window, got '%s'", state)
	}

	state = ComputeGameState(matchTime.Add(duration), matchTime, duration)
	if state != GameStateHistory {
		t.Errorf("Expected history after match window, got '%s'", state)
	}
}

func TestDetermineWinnerRegularTime(t *testing.T) {
	winner := DetermineWinner(intPtr(2), intPtr(1), nil, nil, StageLeaguePhase)
	if winner != WinnerTeam1 {
		t.Errorf("Expected '1' for 2-1, got '%s'", winner)
	}

	winner = DetermineWinner(intPtr(0), intPtr(3), nil, nil, "Quarter-finals")
	if winner != WinnerTeam2 {
		t.Errorf("Expected '2' for 0-3, got '%s'", winner)
	}
}

func TestDetermineWinnerZeroScoresAreValid(t *testing.T) {
	winner := DetermineWinner(intPtr(0), intPtr(0), nil, nil, StageLeaguePhase)
	if winner != WinnerDraw {
		t.Errorf("Expected 'X' for 0-0 in league phase, got '%s'", winner)
	}
}

func TestDetermineWinnerMissingScores(t *testing.T) {
	winner := DetermineWinner(nil, intPtr(1), nil, nil, StageLeaguePhase)
	if winner != WinnerUndetermined {
		t.Errorf("Expected undetermined with missing score, got '%s'", winner)
	}

	winner = DetermineWinner(intPtr(1), nil, nil, nil, "Final")
	if winner != WinnerUndetermined {
		t.Errorf("Expected undetermined with missing score, got '%s'", winner)
	}
}

func TestDetermineWinnerLeaguePhaseTieIgnoresPenalties(t *testing.T) {
	winner := DetermineWinner(intPtr(1), intPtr(1), intPtr(5), intPtr(4), StageLeaguePhase)
	if winner != WinnerDraw {
		t.Errorf("Expected 'X' for league phase tie, got '%s'", winner)
	}
}

func TestDetermineWinnerKnockoutTieUsesPenalties(t *testing.T) {
	winner := DetermineWinner(intPtr(1), intPtr(1), intPtr(4), intPtr(3), "Semi-finals")
	if winner != WinnerTeam1 {
		t.Errorf("Expected '1' after 4-3 shootout, got '%s'", winner)
	}

	winner = DetermineWinner(intPtr(2), intPtr(2), intPtr(2), intPtr(4), "Final")
	if winner != WinnerTeam2 {
		t.Errorf("Expected '2' after 2-4 shootout, got '%s'", winner)
	}
}

func TestDetermineWinnerKnockoutTieWithoutPenalties(t *testing.T) {
	winner := DetermineWinner(intPtr(1), intPtr(1), nil, nil, "Round of 16")
	if winner != WinnerDraw {
		t.Errorf("Expected 'X' when shootout scores are missing, got '%s'", winner)
	}
}

func TestComputeBetState(t *testing.T) {
	if state := ComputeBetState(GameStateUpcoming); state != BetStateEditable {
		t.Errorf("Expected editable for upcoming game, got '%s'", state)
	}
	if state := ComputeBetState(GameStateOngoing); state != BetStateLocked {
		t.Errorf("Expected locked for ongoing game, got '%s'", state)
	}
	if state := ComputeBetState(GameStateHistory); state != BetStateLocked {
		t.Errorf("Expected locked for finished game, got '%s'", state)
	}
}

func TestValidBetChoice(t *testing.T) {
	for _, choice := range []string{"1", "2", "X"} {
		if !ValidBetChoice(choice) {
			t.Errorf("Expected '%s' to be valid", choice)
		}
	}
	for _, choice := range []string{"", "x", "draw", "3"} {
		if ValidBetChoice(choice) {
			t.Errorf("Expected '%s' to be invalid", choice)
		}
	}
}
