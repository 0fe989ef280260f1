package services

import (
	"time"
)

// 比赛生命周期状态
const (
	GameStateUpcoming = "upcoming"
	GameStateOngoing  = "ongoing"
	GameStateHistory  = "history"
)

// 投注生命周期状态
const (
	BetStateEditable = "editable"
	BetStateLocked   = "locked"
)

// 比赛结果标签
const (
	WinnerTeam1        = "1"
	WinnerTeam2        = "2"
	WinnerDraw         = "X"
	WinnerUndetermined = ""
)

// StageLeaguePhase 小组循环阶段，平局不进入点球判定
const StageLeaguePhase = "League phase"

// ComputeGameState 由当前时间和开球时间推导比赛状态。
// 状态永远是 (now, matchTime) 的纯函数，存储值只作缓存。
func ComputeGameState(now, matchTime time.Time, duration time.Duration) string {
	if now.Before(matchTime) {
		return GameStateUpcoming
	}
	if now.Before(matchTime.Add(duration)) {
		return GameStateOngoing
	}
	return GameStateHistory
}

// DetermineWinner 由比分推导比赛结果。
// 常规时间比分任一缺失时结果未定；0 是有效比分。
// 淘汰赛平局查点球比分，点球数据缺失时维持 "X"（沿用既有行为）。
func DetermineWinner(scoreTeam1, scoreTeam2 *int, penaltyTeam1, penaltyTeam2 *int, stage string) string {
	if scoreTeam1 == nil || scoreTeam2 == nil {
		return WinnerUndetermined
	}

	if *scoreTeam1 > *scoreTeam2 {
		return WinnerTeam1
	}
	if *scoreTeam2 > *scoreTeam1 {
		return WinnerTeam2
	}

	// 常规时间平局
	if stage == StageLeaguePhase {
		return WinnerDraw
	}

	// 淘汰赛阶段：查点球
	if penaltyTeam1 != nil && penaltyTeam2 != nil {
		if *penaltyTeam1 > *penaltyTeam2 {
			return WinnerTeam1
		}
		if *penaltyTeam2 > *penaltyTeam1 {
			return WinnerTeam2
		}
	}

	return WinnerDraw
}

// ComputeBetState 投注状态跟随比赛状态，单向锁定
func ComputeBetState(gameState string) string {
	if gameState == GameStateOngoing || gameState == GameStateHistory {
		return BetStateLocked
	}
	return BetStateEditable
}

// ValidBetChoice 校验投注选项
func ValidBetChoice(choice string) bool {
	return choice == WinnerTeam1 || choice == WinnerTeam2 || choice == WinnerDraw
}
