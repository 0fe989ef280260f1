package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"bet-manager/database"
)

// userView 用户对外返回的字段（不含密码哈希）
func userView(u *database.User) map[string]interface{} {
	return map[string]interface{}{
		"id":              u.ID,
		"username":        u.Username,
		"email":           u.Email,
		"points":          u.Points,
		"gameday_budget":  u.GamedayBudget,
		"betting_leagues": u.BettingLeagues,
		"created_at":      u.CreatedAt,
	}
}

// handleRegister 注册新用户并签发令牌
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.users.Register(req.Username, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := s.createToken(user.ID, user.Username)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":         userView(user),
		"access_token": token,
		"token_type":   "bearer",
	})
}

// handleLogin 登录并签发令牌
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.users.Login(req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := s.createToken(user.ID, user.Username)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":         userView(user),
		"access_token": token,
		"token_type":   "bearer",
	})
}

// handleGetMe 获取当前用户信息
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetByID(authenticatedUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userView(user))
}

// handleGetBudget 获取当前用户的预算表，带 gameday 参数时只返回当日余额
func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	userID := authenticatedUserID(r)
	gameday := r.URL.Query().Get("gameday")

	if gameday != "" {
		remaining, err := s.budget.GetBudget(userID, gameday)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"gameday":   gameday,
			"remaining": remaining,
		})
		return
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gameday_budget": user.GamedayBudget,
	})
}

// handleLeaderboard 全站积分排行榜
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.users.Leaderboard(limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leaderboard": entries,
	})
}
