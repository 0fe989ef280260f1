package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"bet-manager/config"
	"bet-manager/logger"
	"bet-manager/services"
)

type Server struct {
	config     *config.Config
	db         *sql.DB
	wsHub      *Hub
	users      *services.UserService
	games      *services.GameService
	bets       *services.BetService
	sideBets   *services.SideBetService
	leagues    *services.LeagueService
	budget     *services.BudgetService
	settlement *services.SettlementStats
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// Deps 服务器依赖的各个服务
type Deps struct {
	Users           *services.UserService
	Games           *services.GameService
	Bets            *services.BetService
	SideBets        *services.SideBetService
	Leagues         *services.LeagueService
	Budget          *services.BudgetService
	SettlementStats *services.SettlementStats
}

func NewServer(cfg *config.Config, db *sql.DB, hub *Hub, deps Deps) *Server {
	return &Server{
		config:     cfg,
		db:         db,
		wsHub:      hub,
		users:      deps.Users,
		games:      deps.Games,
		bets:       deps.Bets,
		sideBets:   deps.SideBets,
		leagues:    deps.Leagues,
		budget:     deps.Budget,
		settlement: deps.SettlementStats,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有来源(生产环境需要限制)
			},
		},
	}
}

func (s *Server) Start() error {
	router := mux.NewRouter()

	// API路由
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/stats", s.handleGetStats).Methods("GET")

	// 用户
	api.HandleFunc("/users/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/users/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/users/me", s.requireAuth(s.handleGetMe)).Methods("GET")
	api.HandleFunc("/users/me/budget", s.requireAuth(s.handleGetBudget)).Methods("GET")
	api.HandleFunc("/users/leaderboard", s.handleLeaderboard).Methods("GET")

	// 比赛
	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/games/{game_id}", s.handleGetGame).Methods("GET")

	// 投注
	api.HandleFunc("/bets", s.requireAuth(s.handleGetUserBets)).Methods("GET")
	api.HandleFunc("/bets", s.requireAuth(s.handlePlaceBet)).Methods("POST")
	api.HandleFunc("/bets/{bet_id}", s.requireAuth(s.handleUpdateBet)).Methods("PUT")
	api.HandleFunc("/bets/{bet_id}", s.requireAuth(s.handleDeleteBet)).Methods("DELETE")

	// 特殊投注
	api.HandleFunc("/side-bets", s.handleListSideBets).Methods("GET")
	api.HandleFunc("/side-bets/mine", s.requireAuth(s.handleGetUserSideBets)).Methods("GET")
	api.HandleFunc("/side-bets/{side_bet_id}/choice", s.requireAuth(s.handlePlaceSideBetChoice)).Methods("POST")
	api.HandleFunc("/side-bets/{side_bet_id}/choice", s.requireAuth(s.handleUpdateSideBetChoice)).Methods("PUT")
	api.HandleFunc("/side-bets/{side_bet_id}/choice", s.requireAuth(s.handleDeleteSideBetChoice)).Methods("DELETE")

	// 竞猜联盟
	api.HandleFunc("/leagues", s.handleListLeagues).Methods("GET")
	api.HandleFunc("/leagues", s.requireAuth(s.handleCreateLeague)).Methods("POST")
	api.HandleFunc("/leagues/mine", s.requireAuth(s.handleGetUserLeagues)).Methods("GET")
	api.HandleFunc("/leagues/code/{code}", s.requireAuth(s.handleGetLeagueByCode)).Methods("GET")
	api.HandleFunc("/leagues/{league_id}", s.handleGetLeague).Methods("GET")
	api.HandleFunc("/leagues/{league_id}/join", s.requireAuth(s.handleJoinLeague)).Methods("POST")
	api.HandleFunc("/leagues/{league_id}/leave", s.requireAuth(s.handleLeaveLeague)).Methods("POST")
	api.HandleFunc("/leagues/{league_id}/leaderboard", s.handleLeagueLeaderboard).Methods("GET")
	api.HandleFunc("/leagues/{league_id}/messages", s.requireAuth(s.handleGetLeagueMessages)).Methods("GET")
	api.HandleFunc("/leagues/{league_id}/messages", s.requireAuth(s.handlePostLeagueMessage)).Methods("POST")

	// WebSocket路由
	router.HandleFunc("/ws", s.handleWebSocket)

	// CORS配置
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
}

// handleHealth 健康检查
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleGetStats 获取结算运行统计
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.settlement.Snapshot()

	var totalGames, totalBets, totalUsers int
	s.db.QueryRow("SELECT COUNT(*) FROM games").Scan(&totalGames)
	s.db.QueryRow("SELECT COUNT(*) FROM bets").Scan(&totalBets)
	s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&totalUsers)
	stats["total_games"] = totalGames
	stats["total_bets"] = totalBets
	stats["total_users"] = totalUsers

	writeJSON(w, http.StatusOK, stats)
}

// handleWebSocket WebSocket连接处理
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:       s.wsHub,
		conn:      conn,
		send:      make(chan []byte, 256),
		filters:   make(map[string]bool),
		leagueIDs: make(map[int64]bool),
	}

	client.hub.register <- client

	// 发送欢迎消息
	welcomeMsg := &WSMessage{
		Type: "connected",
		Data: map[string]interface{}{
			"message": "Connected to bet manager WebSocket",
			"time":    time.Now().Unix(),
		},
	}
	welcomeData, _ := json.Marshal(welcomeMsg)
	client.send <- welcomeData

	go client.writePump()
	go client.readPump()
}
