package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"bet-manager/config"
	"bet-manager/database"
	"bet-manager/services"
	"bet-manager/web"
)

func main() {
	log.Println("Starting Bet Manager Service...")

	// 加载配置
	cfg := config.Load()

	// 连接数据库
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// 运行数据库迁移
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Println("Database connected and migrated")

	// 创建WebSocket Hub
	wsHub := web.NewHub()
	go wsHub.Run()

	// 领域服务
	names := services.NewTeamNameResolver(cfg.TeamNameMapping, cfg.APITeamMapping)
	budgetService := services.NewBudgetService(db, cfg.StageWeights)
	gameService := services.NewGameService(db, cfg.GameDuration)
	betService := services.NewBetService(db, gameService, budgetService)
	sideBetService := services.NewSideBetService(db)
	userService := services.NewUserService(db, budgetService)
	leagueService := services.NewLeagueService(db, wsHub)

	// 外部数据源
	fixturesClient := services.NewFixturesClient(
		cfg.FixturesAPIURL, cfg.HistoryAPIURL,
		cfg.LiveScoresKey, cfg.LiveScoresSecret, cfg.CompetitionID, names)
	oddsClient := services.NewOddsClient(cfg.OddsAPIURL, cfg.OddsAPIKey, names)
	statsClient := services.NewStatsClient(
		cfg.StatsAPIURL, cfg.LiveScoresKey, cfg.LiveScoresSecret, cfg.CompetitionID, names)

	// 结算服务
	settlementStats := services.NewSettlementStats()
	settlementService := services.NewSettlementService(
		db, gameService, betService, sideBetService,
		fixturesClient, oddsClient, statsClient,
		settlementStats, wsHub, cfg.SettlementInterval)
	go settlementService.Start()
	log.Printf("Settlement loop started (interval: %v)", cfg.SettlementInterval)

	// 比分推送消费者
	var scoreFeed *services.ScoreFeed
	if cfg.AMQPURL != "" {
		scoreFeed = services.NewScoreFeed(cfg.AMQPURL, cfg.ScoreFeedQueue, names, settlementService)
		go scoreFeed.Start()
		log.Println("Score feed consumer started")
	} else {
		log.Println("Score feed disabled (no AMQP URL configured)")
	}

	// 启动Web服务器
	server := web.NewServer(cfg, db, wsHub, web.Deps{
		Users:           userService,
		Games:           gameService,
		Bets:            betService,
		SideBets:        sideBetService,
		Leagues:         leagueService,
		Budget:          budgetService,
		SettlementStats: settlementStats,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Web server error: %v", err)
		}
	}()

	log.Printf("Web server started on port %s", cfg.Port)
	log.Println("Service is running. Press Ctrl+C to stop.")

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down service...")

	settlementService.Stop()
	if scoreFeed != nil {
		scoreFeed.Stop()
	}
	server.Stop()

	log.Println("Service stopped")
}
