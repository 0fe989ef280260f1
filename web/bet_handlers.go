package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"bet-manager/database"
	"bet-manager/services"
)

func betView(b *database.Bet) map[string]interface{} {
	return map[string]interface{}{
		"id":             b.ID,
		"user_id":        b.UserID,
		"game_id":        b.GameID,
		"bet_choice":     b.BetChoice,
		"bet_state":      b.BetState,
		"amount":         b.Amount,
		"reward":         b.Reward,
		"points_granted": b.PointsGranted,
		"created_at":     b.CreatedAt,
	}
}

// handleGetUserBets 列出当前用户的投注，state 参数可过滤 editable/locked
func (s *Server) handleGetUserBets(w http.ResponseWriter, r *http.Request) {
	bets, err := s.bets.GetUserBets(authenticatedUserID(r), r.URL.Query().Get("state"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	views := make([]map[string]interface{}, 0, len(bets))
	for _, b := range bets {
		views = append(views, betView(b))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bets": views,
	})
}

// handlePlaceBet 下注
func (s *Server) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GameID    int64  `json:"game_id"`
		BetChoice string `json:"bet_choice"`
		Amount    int    `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bet, remaining, err := s.bets.Place(authenticatedUserID(r), req.GameID, req.BetChoice, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"bet":              betView(bet),
		"remaining_budget": remaining,
	})
}

// handleUpdateBet 修改一条可编辑的投注
func (s *Server) handleUpdateBet(w http.ResponseWriter, r *http.Request) {
	betID, err := strconv.ParseInt(mux.Vars(r)["bet_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet id")
		return
	}

	if err := s.requireBetOwner(r, betID); err != nil {
		writeServiceError(w, err)
		return
	}

	var req struct {
		BetChoice string `json:"bet_choice"`
		Amount    int    `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bet, remaining, err := s.bets.Update(betID, req.BetChoice, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bet":              betView(bet),
		"remaining_budget": remaining,
	})
}

// handleDeleteBet 撤销一条可编辑的投注并退回预算
func (s *Server) handleDeleteBet(w http.ResponseWriter, r *http.Request) {
	betID, err := strconv.ParseInt(mux.Vars(r)["bet_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet id")
		return
	}

	if err := s.requireBetOwner(r, betID); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := s.bets.Delete(betID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// requireBetOwner 校验投注属于当前用户
func (s *Server) requireBetOwner(r *http.Request, betID int64) error {
	bet, err := s.bets.GetByID(betID)
	if err != nil {
		return err
	}
	if bet.UserID != authenticatedUserID(r) {
		return services.ErrUnauthorized
	}
	return nil
}
