package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Connect 连接到数据库
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 设置连接池
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// Migrate 运行数据库迁移
func Migrate(db *sql.DB) error {
	migrations := []string{
		// 用户表
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL CHECK (LENGTH(username) >= 3),
			email VARCHAR(255) UNIQUE NOT NULL CHECK (email <> ''),
			hashed_password TEXT NOT NULL,
			points NUMERIC(12,2) NOT NULL DEFAULT 0,
			gameday_budget JSONB NOT NULL DEFAULT '{}',
			betting_leagues JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,

		// 比赛表
		`CREATE TABLE IF NOT EXISTS games (
			id BIGSERIAL PRIMARY KEY,
			stage VARCHAR(50),
			gameday INTEGER,
			team1 VARCHAR(100) NOT NULL,
			team2 VARCHAR(100) NOT NULL,
			match_time TIMESTAMP NOT NULL,
			game_state VARCHAR(20) NOT NULL DEFAULT 'upcoming',
			score_team1 INTEGER,
			score_team2 INTEGER,
			penalty_score_team1 INTEGER,
			penalty_score_team2 INTEGER,
			game_winner VARCHAR(5),
			team1_odds DOUBLE PRECISION,
			team2_odds DOUBLE PRECISION,
			draw_odds DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (team1, team2, match_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_games_match_time ON games(match_time)`,
		`CREATE INDEX IF NOT EXISTS idx_games_game_state ON games(game_state)`,

		// 投注表
		`CREATE TABLE IF NOT EXISTS bets (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			game_id BIGINT NOT NULL REFERENCES games(id),
			bet_choice VARCHAR(5) NOT NULL,
			bet_state VARCHAR(20) NOT NULL DEFAULT 'editable',
			amount INTEGER NOT NULL CHECK (amount > 0),
			reward NUMERIC(12,2),
			points_granted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bets_user_id ON bets(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bets_game_id ON bets(game_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bets_bet_state ON bets(bet_state)`,

		// 附加竞猜表
		`CREATE TABLE IF NOT EXISTS side_bets (
			id BIGSERIAL PRIMARY KEY,
			question VARCHAR(100) UNIQUE NOT NULL,
			options JSONB NOT NULL,
			answer JSONB,
			reward INTEGER NOT NULL,
			bet_state VARCHAR(20) NOT NULL DEFAULT 'editable',
			last_time_to_bet TIMESTAMP NOT NULL,
			time_to_check_answer TIMESTAMP
		)`,

		// 用户附加竞猜表
		`CREATE TABLE IF NOT EXISTS users_side_bets (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			side_bet_id BIGINT NOT NULL REFERENCES side_bets(id),
			bet_choice JSONB NOT NULL,
			reward INTEGER,
			submitted_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, side_bet_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_side_bets_side_bet_id ON users_side_bets(side_bet_id)`,

		// 竞猜联盟表
		`CREATE TABLE IF NOT EXISTS betting_leagues (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(50) NOT NULL,
			description TEXT,
			manager_id BIGINT NOT NULL REFERENCES users(id),
			members JSONB NOT NULL DEFAULT '[]',
			public BOOLEAN NOT NULL DEFAULT FALSE,
			code VARCHAR(4) UNIQUE,
			group_picture TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_betting_leagues_code ON betting_leagues(code)`,

		// 联盟群聊消息表
		`CREATE TABLE IF NOT EXISTS league_messages (
			id BIGSERIAL PRIMARY KEY,
			league_id BIGINT NOT NULL REFERENCES betting_leagues(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id),
			username VARCHAR(50) NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_league_messages_league_id ON league_messages(league_id)`,

		// 球队表
		`CREATE TABLE IF NOT EXISTS teams (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) UNIQUE NOT NULL,
			logo_url TEXT,
			points INTEGER NOT NULL DEFAULT 0,
			stats JSONB NOT NULL DEFAULT '{}'
		)`,

		// 球员表
		`CREATE TABLE IF NOT EXISTS players (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			team_id BIGINT NOT NULL REFERENCES teams(id),
			stats JSONB NOT NULL DEFAULT '{}',
			UNIQUE (name, team_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_players_team_id ON players(team_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
