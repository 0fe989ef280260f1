package services

import (
	"errors"
	"testing"
	"time"

	"bet-manager/database"
)

func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func TestCalculateBetRewardWinningChoice(t *testing.T) {
	game := &database.Game{
		GameWinner: strPtr("1"),
		Team1Odds:  floatPtr(2.5),
		Team2Odds:  floatPtr(3.1),
		DrawOdds:   floatPtr(3.4),
	}

	reward, err := CalculateBetReward("1", 5, game)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reward != 12.5 {
		t.Errorf("Expected reward 12.5 for 5 at odds 2.5, got %v", reward)
	}
}

func TestCalculateBetRewardLosingChoice(t *testing.T) {
	game := &database.Game{
		GameWinner: strPtr("2"),
		Team1Odds:  floatPtr(2.5),
		Team2Odds:  floatPtr(3.1),
	}

	reward, err := CalculateBetReward("1", 5, game)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reward != 0 {
		t.Errorf("Expected 0 for losing bet, got %v", reward)
	}
}

func TestCalculateBetRewardDraw(t *testing.T) {
	game := &database.Game{
		GameWinner: strPtr("X"),
		DrawOdds:   floatPtr(3.4),
	}

	reward, err := CalculateBetReward("X", 2, game)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reward != 6.8 {
		t.Errorf("Expected 6.8 for 2 at odds 3.4, got %v", reward)
	}
}

func TestCalculateBetRewardMissingOddsDefaultsToStake(t *testing.T) {
	game := &database.Game{
		GameWinner: strPtr("1"),
	}

	reward, err := CalculateBetReward("1", 7, game)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reward != 7 {
		t.Errorf("Expected stake back with missing odds, got %v", reward)
	}
}

func TestCalculateBetRewardPendingResult(t *testing.T) {
	game := &database.Game{}

	_, err := CalculateBetReward("1", 5, game)
	if !errors.Is(err, ErrGameResultPending) {
		t.Fatalf("Expected ErrGameResultPending, got %v", err)
	}
}

func TestRefreshStateLocksStartedBetOnRead(t *testing.T) {
	s := &BetService{games: NewGameService(nil, 3*time.Hour)}
	now := time.Date(2025, 1, 21, 21, 30, 0, 0, time.UTC)

	// 比赛已开球但定时锁定还没跑到，读取时也必须是 locked
	bet := &database.Bet{BetState: BetStateEditable}
	s.refreshState(bet, now.Add(-time.Hour), now)
	if bet.BetState != BetStateLocked {
		t.Errorf("Expected started bet to read as locked, got '%s'", bet.BetState)
	}

	bet = &database.Bet{BetState: BetStateEditable}
	s.refreshState(bet, now.Add(time.Hour), now)
	if bet.BetState != BetStateEditable {
		t.Errorf("Expected upcoming bet to stay editable, got '%s'", bet.BetState)
	}

	// 已锁定的投注不会被回退成可编辑
	bet = &database.Bet{BetState: BetStateLocked}
	s.refreshState(bet, now.Add(time.Hour), now)
	if bet.BetState != BetStateLocked {
		t.Errorf("Expected locked bet to stay locked, got '%s'", bet.BetState)
	}
}
