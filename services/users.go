package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"bet-manager/database"
	"bet-manager/logger"
)

// UserService 用户注册、登录与积分查询
type UserService struct {
	db     *sql.DB
	budget *BudgetService
}

// NewUserService 创建用户服务
func NewUserService(db *sql.DB, budget *BudgetService) *UserService {
	return &UserService{
		db:     db,
		budget: budget,
	}
}

const userColumns = `id, username, email, hashed_password, points, gameday_budget, betting_leagues, created_at, last_updated_at`

func scanUser(scanner interface{ Scan(...interface{}) error }) (*database.User, error) {
	var u database.User
	var budgetRaw, leaguesRaw []byte
	err := scanner.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.Points,
		&budgetRaw, &leaguesRaw, &u.CreatedAt, &u.LastUpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(budgetRaw, &u.GamedayBudget); err != nil {
		return nil, fmt.Errorf("failed to parse budget: %w", err)
	}
	if err := json.Unmarshal(leaguesRaw, &u.BettingLeagues); err != nil {
		return nil, fmt.Errorf("failed to parse leagues: %w", err)
	}
	return &u, nil
}

// Register 注册新用户：密码做 bcrypt 哈希，预算按已知赛程初始化
func (s *UserService) Register(username, email, password string) (*database.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if len(username) < 3 {
		return nil, fmt.Errorf("username must be at least 3 characters: %w", ErrInvalidInput)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email: %w", ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters: %w", ErrInvalidInput)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	budget, err := s.budget.BuildGamedayBudget()
	if err != nil {
		return nil, fmt.Errorf("failed to build initial budget: %w", err)
	}
	budgetRaw, err := json.Marshal(budget)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal budget: %w", err)
	}

	row := s.db.QueryRow(`
		INSERT INTO users (username, email, hashed_password, gameday_budget)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		username, email, string(hashed), budgetRaw)
	user, err := scanUser(row)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, fmt.Errorf("username or email already taken: %w", ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Printf("[UserService] Registered user %s (id %d)", user.Username, user.ID)
	return user, nil
}

// Login 校验用户名和密码，返回用户
func (s *UserService) Login(username, password string) (*database.User, error) {
	user, err := s.GetByUsername(username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// GetByID 按 ID 查询用户
func (s *UserService) GetByID(userID int64) (*database.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// GetByUsername 按用户名查询用户
func (s *UserService) GetByUsername(username string) (*database.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// Leaderboard 按积分降序返回前 limit 名用户
func (s *UserService) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, username, points FROM users
		ORDER BY points DESC, username
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Points); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		e.Rank = rank
		rank++
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LeaderboardEntry 排行榜上的一行
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	UserID   int64   `json:"user_id"`
	Username string  `json:"username"`
	Points   float64 `json:"points"`
}
