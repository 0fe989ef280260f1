package web

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"bet-manager/database"
)

func gameView(g *database.Game) map[string]interface{} {
	return map[string]interface{}{
		"id":                  g.ID,
		"stage":               g.Stage,
		"gameday":             g.Gameday,
		"team1":               g.Team1,
		"team2":               g.Team2,
		"match_time":          g.MatchTime,
		"game_state":          g.GameState,
		"score_team1":         g.ScoreTeam1,
		"score_team2":         g.ScoreTeam2,
		"penalty_score_team1": g.PenaltyScoreTeam1,
		"penalty_score_team2": g.PenaltyScoreTeam2,
		"game_winner":         g.GameWinner,
		"team1_odds":          g.Team1Odds,
		"team2_odds":          g.Team2Odds,
		"draw_odds":           g.DrawOdds,
	}
}

// handleListGames 列出比赛，带 date 参数时只列某个比赛日
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")

	var games []*database.Game
	var err error
	if date != "" {
		games, err = s.games.ListByDate(date)
	} else {
		games, err = s.games.ListAll()
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	views := make([]map[string]interface{}, 0, len(games))
	for _, g := range games {
		views = append(views, gameView(g))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"games": views,
	})
}

// handleGetGame 按 ID 获取一场比赛
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(mux.Vars(r)["game_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	game, err := s.games.GetByID(gameID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gameView(game))
}
