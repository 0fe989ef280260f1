package services

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"bet-manager/database"
	"bet-manager/logger"
)

// 附加竞猜问题，封闭集合，按问题文本分发答案和奖励规则
const (
	QuestionChampion    = "League Champion"
	QuestionTopScorer   = "Top Scorer"
	QuestionTopAssister = "Top Assister"
	QuestionQualifiers  = "Knockout stages qualifiers"
)

// 排序竞猜的计分
const (
	pointsPerCorrectPosition  = 20
	pointsPerCorrectQualifier = 10
)

// PlayerChoice 射手/助攻竞猜的选择
type PlayerChoice struct {
	Player string `json:"player"`
}

// SideBetService 附加竞猜：每个问题有独立的答案函数和奖励函数。
// 答案只在截止时间过后且尚无答案时计算一次；每个用户记录的奖励
// 也只在记录尚无奖励时发放一次。
type SideBetService struct {
	db *sql.DB
}

// NewSideBetService 创建附加竞猜服务
func NewSideBetService(db *sql.DB) *SideBetService {
	return &SideBetService{db: db}
}

const sideBetColumns = `id, question, options, answer, reward, bet_state, last_time_to_bet, time_to_check_answer`

func scanSideBet(scanner interface{ Scan(...interface{}) error }) (*database.SideBet, error) {
	var sb database.SideBet
	err := scanner.Scan(&sb.ID, &sb.Question, &sb.Options, &sb.Answer, &sb.Reward,
		&sb.BetState, &sb.LastTimeToBet, &sb.TimeToCheckAnswer)
	if err != nil {
		return nil, err
	}
	return &sb, nil
}

const userSideBetColumns = `id, user_id, side_bet_id, bet_choice, reward, submitted_at`

func scanUserSideBet(scanner interface{ Scan(...interface{}) error }) (*database.UserSideBet, error) {
	var usb database.UserSideBet
	err := scanner.Scan(&usb.ID, &usb.UserID, &usb.SideBetID, &usb.BetChoice, &usb.Reward, &usb.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return &usb, nil
}

// ComputeSideBetState 竞猜状态是下注截止时间的纯函数
func ComputeSideBetState(now, lastTimeToBet time.Time) string {
	if now.After(lastTimeToBet) {
		return BetStateLocked
	}
	return BetStateEditable
}

// ValidateChoice 按问题类型校验选择的形状
func ValidateChoice(question string, choice json.RawMessage) error {
	switch question {
	case QuestionChampion:
		var team string
		if err := json.Unmarshal(choice, &team); err != nil || team == "" {
			return fmt.Errorf("champion choice must be a team name: %w", ErrInvalidInput)
		}
	case QuestionTopScorer, QuestionTopAssister:
		var pc PlayerChoice
		if err := json.Unmarshal(choice, &pc); err != nil || pc.Player == "" {
			return fmt.Errorf("player choice must contain a player name: %w", ErrInvalidInput)
		}
	case QuestionQualifiers:
		var ordering map[string]string
		if err := json.Unmarshal(choice, &ordering); err != nil || len(ordering) == 0 {
			return fmt.Errorf("qualifiers choice must map positions to teams: %w", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("unknown question %q: %w", question, ErrInvalidInput)
	}
	return nil
}

// CalculateChampionReward 冠军竞猜：选择与答案完全一致得全额奖励
func CalculateChampionReward(choice, answer json.RawMessage, reward int) int {
	if bytes.Equal(bytes.TrimSpace(choice), bytes.TrimSpace(answer)) {
		return reward
	}
	// JSON 字符串可能带不同空白，按值比较兜底
	var c, a string
	if json.Unmarshal(choice, &c) == nil && json.Unmarshal(answer, &a) == nil && c == a {
		return reward
	}
	return 0
}

// CalculatePlayersReward 射手/助攻竞猜：并列最高者任一命中得全额奖励
func CalculatePlayersReward(choice json.RawMessage, answer []string, reward int) int {
	var pc PlayerChoice
	if err := json.Unmarshal(choice, &pc); err != nil {
		return 0
	}
	for _, name := range answer {
		if name == pc.Player {
			return reward
		}
	}
	return 0
}

// CalculateQualifiersReward 排序竞猜：位置全对每队 20 分，猜中但位置不对每队 10 分
func CalculateQualifiersReward(choice map[string]string, answer []string) int {
	reward := 0
	for i := range answer {
		team, ok := choice[fmt.Sprintf("%d", i)]
		if !ok {
			continue
		}
		for j, correct := range answer {
			if team == correct {
				if i == j {
					reward += pointsPerCorrectPosition
				} else {
					reward += pointsPerCorrectQualifier
				}
				break
			}
		}
	}
	return reward
}

// List 列出所有附加竞猜，状态按当前时间重算
func (s *SideBetService) List() ([]*database.SideBet, error) {
	rows, err := s.db.Query(`SELECT ` + sideBetColumns + ` FROM side_bets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query side bets: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var sideBets []*database.SideBet
	for rows.Next() {
		sb, err := scanSideBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan side bet: %w", err)
		}
		sb.BetState = ComputeSideBetState(now, sb.LastTimeToBet)
		sideBets = append(sideBets, sb)
	}
	return sideBets, rows.Err()
}

// GetByID 按 ID 查询附加竞猜
func (s *SideBetService) GetByID(sideBetID int64) (*database.SideBet, error) {
	row := s.db.QueryRow(`SELECT `+sideBetColumns+` FROM side_bets WHERE id = $1`, sideBetID)
	sb, err := scanSideBet(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("side bet %d: %w", sideBetID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query side bet: %w", err)
	}
	sb.BetState = ComputeSideBetState(time.Now(), sb.LastTimeToBet)
	return sb, nil
}

// PlaceUserChoice 提交用户选择。截止后拒绝。
func (s *SideBetService) PlaceUserChoice(userID, sideBetID int64, choice json.RawMessage) (*database.UserSideBet, error) {
	sideBet, err := s.GetByID(sideBetID)
	if err != nil {
		return nil, err
	}
	if sideBet.BetState == BetStateLocked {
		return nil, fmt.Errorf("side bet %d: %w", sideBetID, ErrBetLocked)
	}
	if err := ValidateChoice(sideBet.Question, choice); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`
		INSERT INTO users_side_bets (user_id, side_bet_id, bet_choice)
		VALUES ($1, $2, $3)
		RETURNING `+userSideBetColumns, userID, sideBetID, []byte(choice))
	usb, err := scanUserSideBet(row)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, fmt.Errorf("choice already placed on side bet %d: %w", sideBetID, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to insert user side bet: %w", err)
	}
	return usb, nil
}

// UpdateUserChoice 更新用户选择。截止后拒绝。
func (s *SideBetService) UpdateUserChoice(userID, sideBetID int64, choice json.RawMessage) (*database.UserSideBet, error) {
	sideBet, err := s.GetByID(sideBetID)
	if err != nil {
		return nil, err
	}
	if sideBet.BetState == BetStateLocked {
		return nil, fmt.Errorf("side bet %d: %w", sideBetID, ErrBetLocked)
	}
	if err := ValidateChoice(sideBet.Question, choice); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`
		UPDATE users_side_bets SET bet_choice = $1, submitted_at = CURRENT_TIMESTAMP
		WHERE user_id = $2 AND side_bet_id = $3
		RETURNING `+userSideBetColumns, []byte(choice), userID, sideBetID)
	usb, err := scanUserSideBet(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user side bet: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user side bet: %w", err)
	}
	return usb, nil
}

// DeleteUserChoice 删除用户选择。截止后拒绝。
func (s *SideBetService) DeleteUserChoice(userID, sideBetID int64) error {
	sideBet, err := s.GetByID(sideBetID)
	if err != nil {
		return err
	}
	if sideBet.BetState == BetStateLocked {
		return fmt.Errorf("side bet %d: %w", sideBetID, ErrBetLocked)
	}

	result, err := s.db.Exec(`DELETE FROM users_side_bets WHERE user_id = $1 AND side_bet_id = $2`, userID, sideBetID)
	if err != nil {
		return fmt.Errorf("failed to delete user side bet: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user side bet: %w", ErrNotFound)
	}
	return nil
}

// GetUserSideBets 查询用户的所有附加竞猜记录
func (s *SideBetService) GetUserSideBets(userID int64) ([]*database.UserSideBet, error) {
	rows, err := s.db.Query(`SELECT `+userSideBetColumns+` FROM users_side_bets WHERE user_id = $1 ORDER BY side_bet_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user side bets: %w", err)
	}
	defer rows.Close()

	var records []*database.UserSideBet
	for rows.Next() {
		usb, err := scanUserSideBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user side bet: %w", err)
		}
		records = append(records, usb)
	}
	return records, rows.Err()
}

// GetUserSideBet 查询用户在某个竞猜上的记录
func (s *SideBetService) GetUserSideBet(userID, sideBetID int64) (*database.UserSideBet, error) {
	row := s.db.QueryRow(`SELECT `+userSideBetColumns+` FROM users_side_bets WHERE user_id = $1 AND side_bet_id = $2`, userID, sideBetID)
	usb, err := scanUserSideBet(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user side bet: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user side bet: %w", err)
	}
	return usb, nil
}

// LockExpired 锁定下注截止时间已过的竞猜
func (s *SideBetService) LockExpired(tx *sql.Tx, now time.Time) (int, error) {
	result, err := tx.Exec(`UPDATE side_bets SET bet_state = $1 WHERE bet_state = $2 AND last_time_to_bet < $3`,
		BetStateLocked, BetStateEditable, now)
	if err != nil {
		return 0, fmt.Errorf("failed to lock side bets: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// ComputeAnswers 为核对时间已到且尚无答案的竞猜计算答案。
// 冠军竞猜的答案由人工设置，这里跳过。
func (s *SideBetService) ComputeAnswers(tx *sql.Tx, now time.Time) (int, error) {
	rows, err := tx.Query(`
		SELECT `+sideBetColumns+` FROM side_bets
		WHERE answer IS NULL
		  AND time_to_check_answer IS NOT NULL
		  AND time_to_check_answer < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to query pending side bets: %w", err)
	}
	defer rows.Close()

	var pending []*database.SideBet
	for rows.Next() {
		sb, err := scanSideBet(rows)
		if err != nil {
			return 0, fmt.Errorf("failed to scan side bet: %w", err)
		}
		pending = append(pending, sb)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	computed := 0
	for _, sb := range pending {
		var answer []string
		switch sb.Question {
		case QuestionTopScorer:
			answer, err = s.topPlayersByStat(tx, "goals")
		case QuestionTopAssister:
			answer, err = s.topPlayersByStat(tx, "assists")
		case QuestionQualifiers:
			answer, err = s.leagueQualifiers(tx)
		default:
			continue
		}
		if err != nil {
			return computed, err
		}

		// 统计数据还没入库时答案为空，先不落库，等下一轮重算
		if len(answer) == 0 {
			logger.Printf("[SideBetService] No data to answer %q yet, deferring", sb.Question)
			continue
		}

		raw, err := json.Marshal(answer)
		if err != nil {
			return computed, fmt.Errorf("failed to marshal answer: %w", err)
		}
		if _, err := tx.Exec(`UPDATE side_bets SET answer = $1 WHERE id = $2`, raw, sb.ID); err != nil {
			return computed, fmt.Errorf("failed to store answer: %w", err)
		}
		logger.Printf("[SideBetService] Answer computed for %q: %s", sb.Question, string(raw))
		computed++
	}
	return computed, nil
}

// topPlayersByStat 某项统计并列最高的所有球员
func (s *SideBetService) topPlayersByStat(tx *sql.Tx, stat string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT name FROM players
		WHERE COALESCE((stats->>'%[1]s')::int, 0) = (
			SELECT MAX(COALESCE((stats->>'%[1]s')::int, 0)) FROM players
		)
		ORDER BY name`, stat)
	rows, err := tx.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query top players: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// qualifierStanding 排序竞猜用的积分榜行
type qualifierStanding struct {
	Name           string
	Points         int
	GoalDifference int
}

// RankQualifiers 积分降序、循环阶段净胜球降序，取前 8
func RankQualifiers(standings []qualifierStanding) []string {
	sorted := make([]qualifierStanding, len(standings))
	copy(sorted, standings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Points != sorted[j].Points {
			return sorted[i].Points > sorted[j].Points
		}
		return sorted[i].GoalDifference > sorted[j].GoalDifference
	})
	limit := 8
	if len(sorted) < limit {
		limit = len(sorted)
	}
	names := make([]string, 0, limit)
	for _, t := range sorted[:limit] {
		names = append(names, t.Name)
	}
	return names
}

// leagueQualifiers 从球队表取积分榜并排出前 8
func (s *SideBetService) leagueQualifiers(tx *sql.Tx) ([]string, error) {
	rows, err := tx.Query(`
		SELECT name, points, COALESCE((stats->'League phase'->>'goal_difference')::int, 0)
		FROM teams`)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings: %w", err)
	}
	defer rows.Close()

	var standings []qualifierStanding
	for rows.Next() {
		var st qualifierStanding
		if err := rows.Scan(&st.Name, &st.Points, &st.GoalDifference); err != nil {
			return nil, err
		}
		standings = append(standings, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return RankQualifiers(standings), nil
}

// answerReady 答案已计算且非空。JSON null 和空数组视为未就绪。
func answerReady(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	return !bytes.Equal(trimmed, []byte("null")) && !bytes.Equal(trimmed, []byte("[]"))
}

// CreditRewards 为已有答案的竞猜发放用户奖励。
// 奖励发放和积分累加在同一个事务里，reward 非空的记录跳过，
// 保证每个用户每个竞猜至多记一次分。
func (s *SideBetService) CreditRewards(tx *sql.Tx) (int, error) {
	rows, err := tx.Query(`SELECT ` + sideBetColumns + ` FROM side_bets WHERE answer IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to query answered side bets: %w", err)
	}
	defer rows.Close()

	var answered []*database.SideBet
	for rows.Next() {
		sb, err := scanSideBet(rows)
		if err != nil {
			return 0, fmt.Errorf("failed to scan side bet: %w", err)
		}
		answered = append(answered, sb)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	credited := 0
	for _, sb := range answered {
		if !answerReady(sb.Answer) {
			continue
		}
		n, err := s.creditSideBet(tx, sb)
		if err != nil {
			return credited, err
		}
		credited += n
	}
	return credited, nil
}

func (s *SideBetService) creditSideBet(tx *sql.Tx, sideBet *database.SideBet) (int, error) {
	rows, err := tx.Query(`SELECT `+userSideBetColumns+` FROM users_side_bets WHERE side_bet_id = $1 AND reward IS NULL`, sideBet.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to query uncredited records: %w", err)
	}
	defer rows.Close()

	var records []*database.UserSideBet
	for rows.Next() {
		usb, err := scanUserSideBet(rows)
		if err != nil {
			return 0, fmt.Errorf("failed to scan user side bet: %w", err)
		}
		records = append(records, usb)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	credited := 0
	for _, usb := range records {
		reward, err := s.calculateReward(sideBet, usb)
		if err != nil {
			return credited, err
		}
		if _, err := tx.Exec(`UPDATE users SET points = points + $1 WHERE id = $2`, reward, usb.UserID); err != nil {
			return credited, fmt.Errorf("failed to credit user %d: %w", usb.UserID, err)
		}
		if _, err := tx.Exec(`UPDATE users_side_bets SET reward = $1 WHERE id = $2`, reward, usb.ID); err != nil {
			return credited, fmt.Errorf("failed to store reward for record %d: %w", usb.ID, err)
		}
		credited++
	}
	return credited, nil
}

func (s *SideBetService) calculateReward(sideBet *database.SideBet, usb *database.UserSideBet) (int, error) {
	switch sideBet.Question {
	case QuestionChampion:
		return CalculateChampionReward(usb.BetChoice, sideBet.Answer, sideBet.Reward), nil
	case QuestionTopScorer, QuestionTopAssister:
		var answer []string
		if err := json.Unmarshal(sideBet.Answer, &answer); err != nil {
			return 0, fmt.Errorf("failed to parse players answer: %w", err)
		}
		return CalculatePlayersReward(usb.BetChoice, answer, sideBet.Reward), nil
	case QuestionQualifiers:
		var answer []string
		if err := json.Unmarshal(sideBet.Answer, &answer); err != nil {
			return 0, fmt.Errorf("failed to parse qualifiers answer: %w", err)
		}
		var choice map[string]string
		if err := json.Unmarshal(usb.BetChoice, &choice); err != nil {
			return 0, fmt.Errorf("failed to parse qualifiers choice: %w", err)
		}
		return CalculateQualifiersReward(choice, answer), nil
	}
	return 0, fmt.Errorf("unknown question %q: %w", sideBet.Question, ErrInvalidInput)
}
