package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"bet-manager/database"
)

func sideBetView(sb *database.SideBet) map[string]interface{} {
	return map[string]interface{}{
		"id":                   sb.ID,
		"question":             sb.Question,
		"options":              sb.Options,
		"answer":               sb.Answer,
		"reward":               sb.Reward,
		"bet_state":            sb.BetState,
		"last_time_to_bet":     sb.LastTimeToBet,
		"time_to_check_answer": sb.TimeToCheckAnswer,
	}
}

func userSideBetView(usb *database.UserSideBet) map[string]interface{} {
	return map[string]interface{}{
		"id":           usb.ID,
		"user_id":      usb.UserID,
		"side_bet_id":  usb.SideBetID,
		"bet_choice":   usb.BetChoice,
		"reward":       usb.Reward,
		"submitted_at": usb.SubmittedAt,
	}
}

// handleListSideBets 列出所有特殊投注问题
func (s *Server) handleListSideBets(w http.ResponseWriter, r *http.Request) {
	sideBets, err := s.sideBets.List()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	views := make([]map[string]interface{}, 0, len(sideBets))
	for _, sb := range sideBets {
		views = append(views, sideBetView(sb))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"side_bets": views,
	})
}

// handleGetUserSideBets 列出当前用户的特殊投注选择
func (s *Server) handleGetUserSideBets(w http.ResponseWriter, r *http.Request) {
	choices, err := s.sideBets.GetUserSideBets(authenticatedUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	views := make([]map[string]interface{}, 0, len(choices))
	for _, usb := range choices {
		views = append(views, userSideBetView(usb))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"side_bets": views,
	})
}

func sideBetIDFrom(r *http.Request) (int64, bool) {
	sideBetID, err := strconv.ParseInt(mux.Vars(r)["side_bet_id"], 10, 64)
	return sideBetID, err == nil
}

// handlePlaceSideBetChoice 提交特殊投注选择
func (s *Server) handlePlaceSideBetChoice(w http.ResponseWriter, r *http.Request) {
	sideBetID, ok := sideBetIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid side bet id")
		return
	}

	var req struct {
		BetChoice json.RawMessage `json:"bet_choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	choice, err := s.sideBets.PlaceUserChoice(authenticatedUserID(r), sideBetID, req.BetChoice)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userSideBetView(choice))
}

// handleUpdateSideBetChoice 修改截止前的特殊投注选择
func (s *Server) handleUpdateSideBetChoice(w http.ResponseWriter, r *http.Request) {
	sideBetID, ok := sideBetIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid side bet id")
		return
	}

	var req struct {
		BetChoice json.RawMessage `json:"bet_choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	choice, err := s.sideBets.UpdateUserChoice(authenticatedUserID(r), sideBetID, req.BetChoice)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userSideBetView(choice))
}

// handleDeleteSideBetChoice 撤回截止前的特殊投注选择
func (s *Server) handleDeleteSideBetChoice(w http.ResponseWriter, r *http.Request) {
	sideBetID, ok := sideBetIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid side bet id")
		return
	}

	if err := s.sideBets.DeleteUserChoice(authenticatedUserID(r), sideBetID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
