package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"time"

	"bet-manager/database"
	"bet-manager/services"
)

// 初始化特殊投注问题。选项从已入库的比赛和球员生成，
// 重复执行不会覆盖已有问题。
func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	teams, err := distinctTeams(db)
	if err != nil {
		log.Fatalf("Failed to load teams: %v", err)
	}
	players, err := playerNames(db)
	if err != nil {
		log.Fatalf("Failed to load players: %v", err)
	}

	lastTimeToBet, err := firstGameTime(db)
	if err != nil {
		log.Fatalf("Failed to determine betting deadline: %v", err)
	}
	leaguePhaseEnd := parseEnvTime("LEAGUE_PHASE_END", lastTimeToBet.AddDate(0, 6, 0))
	tournamentEnd := parseEnvTime("TOURNAMENT_END", lastTimeToBet.AddDate(0, 9, 0))

	seeds := []struct {
		question    string
		options     interface{}
		reward      int
		checkAnswer *time.Time
	}{
		{services.QuestionChampion, teams, 50, nil}, // 冠军人工判定，不设自动检查时间
		{services.QuestionTopScorer, players, 20, &tournamentEnd},
		{services.QuestionTopAssister, players, 20, &tournamentEnd},
		{services.QuestionQualifiers, teams, 20, &leaguePhaseEnd},
	}

	for _, seed := range seeds {
		options, err := json.Marshal(seed.options)
		if err != nil {
			log.Fatalf("Failed to marshal options for %q: %v", seed.question, err)
		}

		result, err := db.Exec(`
			INSERT INTO side_bets (question, options, reward, last_time_to_bet, time_to_check_answer)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (question) DO NOTHING`,
			seed.question, options, seed.reward, lastTimeToBet, seed.checkAnswer)
		if err != nil {
			log.Fatalf("Failed to seed %q: %v", seed.question, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			log.Printf("Seeded side bet: %s", seed.question)
		} else {
			log.Printf("Side bet already exists: %s", seed.question)
		}
	}

	log.Println("Seeding completed")
}

func distinctTeams(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`
		SELECT DISTINCT team FROM (
			SELECT team1 AS team FROM games
			UNION
			SELECT team2 FROM games
		) t ORDER BY team`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		teams = append(teams, name)
	}
	return teams, rows.Err()
}

func playerNames(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM players ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		players = append(players, name)
	}
	return players, rows.Err()
}

// firstGameTime 下注截止到首场比赛开球
func firstGameTime(db *sql.DB) (time.Time, error) {
	var first sql.NullTime
	err := db.QueryRow(`SELECT MIN(match_time) FROM games`).Scan(&first)
	if err != nil {
		return time.Time{}, err
	}
	if !first.Valid {
		return time.Now().AddDate(0, 1, 0), nil
	}
	return first.Time, nil
}

func parseEnvTime(key string, fallback time.Time) time.Time {
	if value := os.Getenv(key); value != "" {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t
		}
		log.Printf("Ignoring invalid %s, using default", key)
	}
	return fallback
}
