package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"bet-manager/database"
)

// leagueView 联盟对外返回的字段。邀请码只发给成员。
func leagueView(l *database.BettingLeague, includeCode bool) map[string]interface{} {
	view := map[string]interface{}{
		"id":            l.ID,
		"name":          l.Name,
		"description":   l.Description,
		"manager_id":    l.ManagerID,
		"members":       l.Members,
		"public":        l.Public,
		"group_picture": l.GroupPicture,
		"created_at":    l.CreatedAt,
	}
	if includeCode {
		view["code"] = l.Code
	}
	return view
}

func messageView(m *database.LeagueMessage) map[string]interface{} {
	return map[string]interface{}{
		"id":         m.ID,
		"league_id":  m.LeagueID,
		"user_id":    m.UserID,
		"username":   m.Username,
		"content":    m.Content,
		"created_at": m.CreatedAt,
	}
}

func leagueIDFrom(r *http.Request) (int64, bool) {
	leagueID, err := strconv.ParseInt(mux.Vars(r)["league_id"], 10, 64)
	return leagueID, err == nil
}

func isLeagueMember(l *database.BettingLeague, userID int64) bool {
	for _, member := range l.Members {
		if member.ID == userID {
			return true
		}
	}
	return false
}

// handleListLeagues 列出公开联盟
func (s *Server) handleListLeagues(w http.ResponseWriter, r *http.Request) {
	leagues, err := s.leagues.ListPublic()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	views := make([]map[string]interface{}, 0, len(leagues))
	for _, l := range leagues {
		views = append(views, leagueView(l, false))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leagues": views,
	})
}

// handleGetUserLeagues 列出当前用户加入的联盟
func (s *Server) handleGetUserLeagues(w http.ResponseWriter, r *http.Request) {
	leagues, err := s.leagues.ListForUser(authenticatedUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	views := make([]map[string]interface{}, 0, len(leagues))
	for _, l := range leagues {
		views = append(views, leagueView(l, true))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leagues": views,
	})
}

// handleCreateLeague 创建联盟
func (s *Server) handleCreateLeague(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Public      bool   `json:"public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.users.GetByID(authenticatedUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	league, err := s.leagues.Create(user, req.Name, req.Description, req.Public)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, leagueView(league, true))
}

// handleGetLeague 按 ID 获取联盟
func (s *Server) handleGetLeague(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := leagueIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid league id")
		return
	}

	league, err := s.leagues.GetByID(leagueID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leagueView(league, false))
}

// handleGetLeagueByCode 按邀请码查找联盟
func (s *Server) handleGetLeagueByCode(w http.ResponseWriter, r *http.Request) {
	league, err := s.leagues.GetByCode(mux.Vars(r)["code"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leagueView(league, false))
}

// handleJoinLeague 加入联盟，私有联盟需要邀请码
func (s *Server) handleJoinLeague(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := leagueIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid league id")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	user, err := s.users.GetByID(authenticatedUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	league, err := s.leagues.Join(user, leagueID, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leagueView(league, true))
}

// handleLeaveLeague 退出联盟
func (s *Server) handleLeaveLeague(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := leagueIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid league id")
		return
	}

	if err := s.leagues.Leave(authenticatedUserID(r), leagueID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// handleLeagueLeaderboard 联盟内部排行榜
func (s *Server) handleLeagueLeaderboard(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := leagueIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid league id")
		return
	}

	entries, err := s.leagues.Leaderboard(leagueID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leaderboard": entries,
	})
}

// handleGetLeagueMessages 获取联盟群聊消息（仅成员）
func (s *Server) handleGetLeagueMessages(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := leagueIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid league id")
		return
	}

	league, err := s.leagues.GetByID(leagueID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !isLeagueMember(league, authenticatedUserID(r)) {
		writeError(w, http.StatusForbidden, "not a league member")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	messages, err := s.leagues.GetMessages(leagueID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	views := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		views = append(views, messageView(m))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": views,
	})
}

// handlePostLeagueMessage 发送联盟群聊消息
func (s *Server) handlePostLeagueMessage(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := leagueIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid league id")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.users.GetByID(authenticatedUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	msg, err := s.leagues.PostMessage(user, leagueID, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageView(msg))
}
