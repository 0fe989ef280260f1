package services

import (
	"testing"
	"time"

	"bet-manager/database"
)

func TestRefreshDerivesWinnerFromLateScores(t *testing.T) {
	svc := NewGameService(nil, 3*time.Hour)
	now := time.Date(2025, 1, 22, 12, 0, 0, 0, time.UTC)

	// 比分在比赛结束后才补到：状态已是 history，结果仍空缺
	game := &database.Game{
		Team1:      "Liverpool",
		Team2:      "Lille",
		MatchTime:  now.Add(-6 * time.Hour),
		GameState:  GameStateHistory,
		Stage:      strPtr(StageLeaguePhase),
		ScoreTeam1: intPtr(2),
		ScoreTeam2: intPtr(1),
	}

	svc.Refresh(game, now)

	if game.GameState != GameStateHistory {
		t.Errorf("Expected state history, got '%s'", game.GameState)
	}
	if game.GameWinner == nil {
		t.Fatal("Expected winner to be derived from late scores")
	}
	if *game.GameWinner != WinnerTeam1 {
		t.Errorf("Expected winner '1', got '%s'", *game.GameWinner)
	}
}

func TestRefreshClearsWinnerWhileScoresMissing(t *testing.T) {
	svc := NewGameService(nil, 3*time.Hour)
	now := time.Date(2025, 1, 22, 12, 0, 0, 0, time.UTC)

	game := &database.Game{
		Team1:     "Liverpool",
		Team2:     "Lille",
		MatchTime: now.Add(-6 * time.Hour),
		GameState: GameStateHistory,
	}

	svc.Refresh(game, now)

	if game.GameWinner != nil {
		t.Errorf("Expected no winner without scores, got '%s'", *game.GameWinner)
	}
}
