package services

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"bet-manager/database"
	"bet-manager/logger"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 4

// LeagueService 竞猜联盟：创建、加入、退出、排行榜和群聊
type LeagueService struct {
	db          *sql.DB
	broadcaster EventBroadcaster
}

// NewLeagueService 创建联盟服务
func NewLeagueService(db *sql.DB, broadcaster EventBroadcaster) *LeagueService {
	return &LeagueService{
		db:          db,
		broadcaster: broadcaster,
	}
}

const leagueColumns = `id, name, description, manager_id, members, public, code, group_picture, created_at`

func scanLeague(scanner interface{ Scan(...interface{}) error }) (*database.BettingLeague, error) {
	var l database.BettingLeague
	var membersRaw []byte
	err := scanner.Scan(&l.ID, &l.Name, &l.Description, &l.ManagerID,
		&membersRaw, &l.Public, &l.Code, &l.GroupPicture, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(membersRaw, &l.Members); err != nil {
		return nil, fmt.Errorf("failed to parse members: %w", err)
	}
	return &l, nil
}

// generateCode 生成 4 位大写字母/数字邀请码
func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// Create 创建联盟，创建者自动成为管理员和首个成员。
// 私有联盟分配唯一邀请码，码冲突时重新生成。
func (s *LeagueService) Create(manager *database.User, name, description string, public bool) (*database.BettingLeague, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("league name required: %w", ErrInvalidInput)
	}

	members, err := json.Marshal([]database.LeagueMember{{
		ID:       manager.ID,
		Username: manager.Username,
		Points:   manager.Points,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal members: %w", err)
	}

	var desc *string
	if description != "" {
		desc = &description
	}

	for attempt := 0; attempt < 5; attempt++ {
		var code *string
		if !public {
			generated, err := generateCode()
			if err != nil {
				return nil, err
			}
			code = &generated
		}

		row := s.db.QueryRow(`
			INSERT INTO betting_leagues (name, description, manager_id, members, public, code)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+leagueColumns,
			name, desc, manager.ID, members, public, code)
		league, err := scanLeague(row)
		if err != nil {
			if !public && strings.Contains(err.Error(), "duplicate key") {
				continue
			}
			return nil, fmt.Errorf("failed to create league: %w", err)
		}

		if err := s.addUserLeague(manager.ID, league.ID); err != nil {
			return nil, err
		}
		logger.Printf("[LeagueService] Created league %s (id %d, public %t)", league.Name, league.ID, public)
		return league, nil
	}
	return nil, fmt.Errorf("could not allocate unique invite code")
}

// GetByID 按 ID 查询联盟
func (s *LeagueService) GetByID(leagueID int64) (*database.BettingLeague, error) {
	row := s.db.QueryRow(`SELECT `+leagueColumns+` FROM betting_leagues WHERE id = $1`, leagueID)
	league, err := scanLeague(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("league %d: %w", leagueID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query league: %w", err)
	}
	return league, nil
}

// GetByCode 按邀请码查找私有联盟
func (s *LeagueService) GetByCode(code string) (*database.BettingLeague, error) {
	row := s.db.QueryRow(`SELECT `+leagueColumns+` FROM betting_leagues WHERE code = $1`, strings.ToUpper(code))
	league, err := scanLeague(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("league with code %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query league: %w", err)
	}
	return league, nil
}

// ListPublic 列出所有公开联盟
func (s *LeagueService) ListPublic() ([]*database.BettingLeague, error) {
	rows, err := s.db.Query(`SELECT ` + leagueColumns + ` FROM betting_leagues WHERE public = TRUE ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leagues: %w", err)
	}
	defer rows.Close()

	var leagues []*database.BettingLeague
	for rows.Next() {
		league, err := scanLeague(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan league: %w", err)
		}
		leagues = append(leagues, league)
	}
	return leagues, rows.Err()
}

// ListForUser 列出用户已加入的联盟
func (s *LeagueService) ListForUser(userID int64) ([]*database.BettingLeague, error) {
	rows, err := s.db.Query(`
		SELECT `+leagueColumns+` FROM betting_leagues
		WHERE members @> $1::jsonb
		ORDER BY created_at`,
		fmt.Sprintf(`[{"id": %d}]`, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query user leagues: %w", err)
	}
	defer rows.Close()

	var leagues []*database.BettingLeague
	for rows.Next() {
		league, err := scanLeague(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan league: %w", err)
		}
		leagues = append(leagues, league)
	}
	return leagues, rows.Err()
}

// Join 加入联盟。私有联盟必须提供正确的邀请码，重复加入直接返回。
func (s *LeagueService) Join(user *database.User, leagueID int64, code string) (*database.BettingLeague, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+leagueColumns+` FROM betting_leagues WHERE id = $1 FOR UPDATE`, leagueID)
	league, err := scanLeague(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("league %d: %w", leagueID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query league: %w", err)
	}

	if !league.Public {
		if league.Code == nil || !strings.EqualFold(code, *league.Code) {
			return nil, fmt.Errorf("wrong invite code: %w", ErrUnauthorized)
		}
	}

	for _, member := range league.Members {
		if member.ID == user.ID {
			return league, nil
		}
	}

	league.Members = append(league.Members, database.LeagueMember{
		ID:       user.ID,
		Username: user.Username,
		Points:   user.Points,
	})
	if err := s.saveMembers(tx, league); err != nil {
		return nil, err
	}
	if err := s.addUserLeagueTx(tx, user.ID, league.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit join: %w", err)
	}

	logger.Printf("[LeagueService] User %s joined league %d", user.Username, league.ID)
	return league, nil
}

// Leave 退出联盟。管理员退出时联盟移交给最早加入的其他成员，
// 最后一个成员退出时删除联盟。
func (s *LeagueService) Leave(userID, leagueID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+leagueColumns+` FROM betting_leagues WHERE id = $1 FOR UPDATE`, leagueID)
	league, err := scanLeague(row)
	if err == sql.ErrNoRows {
		return fmt.Errorf("league %d: %w", leagueID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to query league: %w", err)
	}

	found := false
	remaining := league.Members[:0]
	for _, member := range league.Members {
		if member.ID == userID {
			found = true
			continue
		}
		remaining = append(remaining, member)
	}
	if !found {
		return fmt.Errorf("user %d not in league %d: %w", userID, leagueID, ErrNotFound)
	}
	league.Members = remaining

	if len(league.Members) == 0 {
		if _, err := tx.Exec(`DELETE FROM betting_leagues WHERE id = $1`, leagueID); err != nil {
			return fmt.Errorf("failed to delete empty league: %w", err)
		}
	} else {
		if league.ManagerID == userID {
			league.ManagerID = league.Members[0].ID
			if _, err := tx.Exec(`UPDATE betting_leagues SET manager_id = $1 WHERE id = $2`,
				league.ManagerID, leagueID); err != nil {
				return fmt.Errorf("failed to transfer league: %w", err)
			}
		}
		if err := s.saveMembers(tx, league); err != nil {
			return err
		}
	}

	if err := s.removeUserLeagueTx(tx, userID, leagueID); err != nil {
		return err
	}
	return tx.Commit()
}

// Leaderboard 返回联盟成员按最新积分降序的排名
func (s *LeagueService) Leaderboard(leagueID int64) ([]LeaderboardEntry, error) {
	league, err := s.GetByID(leagueID)
	if err != nil {
		return nil, err
	}
	if len(league.Members) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(league.Members))
	for _, member := range league.Members {
		ids = append(ids, member.ID)
	}
	idsRaw, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal member ids: %w", err)
	}

	// 积分以 users 表为准，members 里的是加入时的快照
	rows, err := s.db.Query(`
		SELECT id, username, points FROM users
		WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb)::bigint)`, idsRaw)
	if err != nil {
		return nil, fmt.Errorf("failed to query member points: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Points); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].Username < entries[j].Username
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// PostMessage 在联盟群聊里发消息并广播给在线成员
func (s *LeagueService) PostMessage(user *database.User, leagueID int64, content string) (*database.LeagueMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty message: %w", ErrInvalidInput)
	}

	league, err := s.GetByID(leagueID)
	if err != nil {
		return nil, err
	}
	isMember := false
	for _, member := range league.Members {
		if member.ID == user.ID {
			isMember = true
			break
		}
	}
	if !isMember {
		return nil, fmt.Errorf("user %d not in league %d: %w", user.ID, leagueID, ErrUnauthorized)
	}

	var msg database.LeagueMessage
	err = s.db.QueryRow(`
		INSERT INTO league_messages (league_id, user_id, username, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, league_id, user_id, username, content, created_at`,
		leagueID, user.ID, user.Username, content).Scan(
		&msg.ID, &msg.LeagueID, &msg.UserID, &msg.Username, &msg.Content, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(map[string]interface{}{
			"type":      "league_message",
			"league_id": msg.LeagueID,
			"user_id":   msg.UserID,
			"username":  msg.Username,
			"content":   msg.Content,
			"timestamp": msg.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return &msg, nil
}

// GetMessages 按时间顺序返回联盟最近的 limit 条消息
func (s *LeagueService) GetMessages(leagueID int64, limit int) ([]*database.LeagueMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, league_id, user_id, username, content, created_at
		FROM (
			SELECT id, league_id, user_id, username, content, created_at
			FROM league_messages WHERE league_id = $1
			ORDER BY created_at DESC LIMIT $2
		) recent
		ORDER BY created_at`, leagueID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*database.LeagueMessage
	for rows.Next() {
		var msg database.LeagueMessage
		if err := rows.Scan(&msg.ID, &msg.LeagueID, &msg.UserID, &msg.Username, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

func (s *LeagueService) saveMembers(tx *sql.Tx, league *database.BettingLeague) error {
	raw, err := json.Marshal(league.Members)
	if err != nil {
		return fmt.Errorf("failed to marshal members: %w", err)
	}
	if _, err := tx.Exec(`UPDATE betting_leagues SET members = $1 WHERE id = $2`, raw, league.ID); err != nil {
		return fmt.Errorf("failed to update members: %w", err)
	}
	return nil
}

// addUserLeague 把联盟 ID 加进用户的 betting_leagues 列表
func (s *LeagueService) addUserLeague(userID, leagueID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := s.addUserLeagueTx(tx, userID, leagueID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *LeagueService) addUserLeagueTx(tx *sql.Tx, userID, leagueID int64) error {
	_, err := tx.Exec(`
		UPDATE users SET betting_leagues = betting_leagues || $1::jsonb
		WHERE id = $2 AND NOT betting_leagues @> $1::jsonb`,
		fmt.Sprintf("[%d]", leagueID), userID)
	if err != nil {
		return fmt.Errorf("failed to add league to user: %w", err)
	}
	return nil
}

func (s *LeagueService) removeUserLeagueTx(tx *sql.Tx, userID, leagueID int64) error {
	_, err := tx.Exec(`
		UPDATE users SET betting_leagues = (
			SELECT COALESCE(jsonb_agg(elem::bigint), '[]'::jsonb)
			FROM jsonb_array_elements_text(betting_leagues) elem
			WHERE elem::bigint <> $1
		)
		WHERE id = $2`,
		leagueID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove league from user: %w", err)
	}
	return nil
}
