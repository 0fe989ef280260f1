package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"bet-manager/logger"
)

// MatchFactsProvider 比赛事实来源
type MatchFactsProvider interface {
	FetchMatchFacts() ([]MatchFact, error)
}

// FixturesClient 赛程/赛果 API 客户端，分页拉取未来赛程和历史赛果
type FixturesClient struct {
	fixturesURL   string
	historyURL    string
	key           string
	secret        string
	competitionID string
	client        *http.Client
	names         *TeamNameResolver
}

// NewFixturesClient 创建赛程客户端
func NewFixturesClient(fixturesURL, historyURL, key, secret, competitionID string, names *TeamNameResolver) *FixturesClient {
	return &FixturesClient{
		fixturesURL:   fixturesURL,
		historyURL:    historyURL,
		key:           key,
		secret:        secret,
		competitionID: competitionID,
		client:        &http.Client{Timeout: 30 * time.Second},
		names:         names,
	}
}

var scorePattern = regexp.MustCompile(`(\d+)\s*-\s*(\d+)`)

// parseScorePair 解析 "2 - 1" 形式的比分
func parseScorePair(text string) (*int, *int) {
	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	a, err1 := strconv.Atoi(m[1])
	b, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	return &a, &b
}

// parseOddsValue API 的赔率字段可能是字符串、数字或缺失
func parseOddsValue(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f >= 1.0 {
			return &f
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 1.0 {
			return &f
		}
	}
	return nil
}

// getJSONWithRetry 发起 GET 请求并解析 JSON。
// 429 时按退避重试，重试耗尽或其它失败返回 ErrUpstreamUnavailable。
func getJSONWithRetry(client *http.Client, rawURL string, params url.Values, out interface{}) error {
	target := rawURL
	if len(params) > 0 {
		target = rawURL + "?" + params.Encode()
	}

	backoff := 2 * time.Second
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		resp, err := client.Get(target)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("rate limited")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("API returned status %d: %s: %w", resp.StatusCode, string(body), ErrUpstreamUnavailable)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("request failed after retries: %v: %w", lastErr, ErrUpstreamUnavailable)
}

// fixturesResponse 赛程 API 响应
type fixturesResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Fixtures []struct {
			Home struct {
				Name string `json:"name"`
			} `json:"home"`
			Away struct {
				Name string `json:"name"`
			} `json:"away"`
			Date  string `json:"date"`
			Time  string `json:"time"`
			Round string `json:"round"`
			Odds  struct {
				Pre struct {
					One  json.RawMessage `json:"1"`
					Draw json.RawMessage `json:"X"`
					Two  json.RawMessage `json:"2"`
				} `json:"pre"`
			} `json:"odds"`
		} `json:"fixtures"`
		TotalPages int `json:"total_pages"`
	} `json:"data"`
}

// historyResponse 历史赛果 API 响应
type historyResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Match []struct {
			HomeName  string `json:"home_name"`
			AwayName  string `json:"away_name"`
			Date      string `json:"date"`
			Scheduled string `json:"scheduled"`
			FTScore   string `json:"ft_score"`
			Round     string `json:"round"`
			Outcomes  struct {
				FullTime        string `json:"full_time"`
				PenaltyShootout string `json:"penalty_shootout"`
			} `json:"outcomes"`
			PSScore string `json:"ps_score"`
			Odds    struct {
				Pre struct {
					One  json.RawMessage `json:"1"`
					Draw json.RawMessage `json:"X"`
					Two  json.RawMessage `json:"2"`
				} `json:"pre"`
			} `json:"odds"`
		} `json:"match"`
		TotalPages int `json:"total_pages"`
	} `json:"data"`
}

// FetchMatchFacts 拉取未来赛程和历史赛果，统一成比赛事实
func (c *FixturesClient) FetchMatchFacts() ([]MatchFact, error) {
	fixtures, err := c.fetchFixtures()
	if err != nil {
		return nil, err
	}
	history, err := c.fetchHistory()
	if err != nil {
		return nil, err
	}
	facts := append(fixtures, history...)
	logger.Printf("[FixturesClient] Fetched %d match facts (%d fixtures, %d results)",
		len(facts), len(fixtures), len(history))
	return facts, nil
}

func (c *FixturesClient) baseParams() url.Values {
	params := url.Values{}
	params.Set("key", c.key)
	params.Set("secret", c.secret)
	params.Set("competition_id", c.competitionID)
	return params
}

func (c *FixturesClient) fetchFixtures() ([]MatchFact, error) {
	var facts []MatchFact
	page, totalPages := 1, 1

	for page <= totalPages {
		params := c.baseParams()
		params.Set("page", strconv.Itoa(page))

		var resp fixturesResponse
		if err := getJSONWithRetry(c.client, c.fixturesURL, params, &resp); err != nil {
			return nil, fmt.Errorf("fixtures page %d: %w", page, err)
		}
		if !resp.Success {
			return nil, fmt.Errorf("fixtures API reported failure: %w", ErrUpstreamUnavailable)
		}
		if resp.Data.TotalPages > 0 {
			totalPages = resp.Data.TotalPages
		}

		for _, f := range resp.Data.Fixtures {
			matchTime, err := time.Parse("2006-01-02 15:04:05", f.Date+" "+f.Time)
			if err != nil {
				logger.Printf("[FixturesClient] Skipping fixture with bad time: %s vs %s", f.Home.Name, f.Away.Name)
				continue
			}
			fact := MatchFact{
				Team1:     c.names.CleanAPIName(f.Home.Name),
				Team2:     c.names.CleanAPIName(f.Away.Name),
				MatchTime: matchTime,
				Team1Odds: parseOddsValue(f.Odds.Pre.One),
				Team2Odds: parseOddsValue(f.Odds.Pre.Two),
				DrawOdds:  parseOddsValue(f.Odds.Pre.Draw),
			}
			if f.Round != "" {
				round := f.Round
				fact.Stage = &round
			}
			facts = append(facts, fact)
		}
		page++
	}
	return facts, nil
}

func (c *FixturesClient) fetchHistory() ([]MatchFact, error) {
	var facts []MatchFact
	page, totalPages := 1, 1

	for page <= totalPages {
		params := c.baseParams()
		params.Set("page", strconv.Itoa(page))

		var resp historyResponse
		if err := getJSONWithRetry(c.client, c.historyURL, params, &resp); err != nil {
			return nil, fmt.Errorf("history page %d: %w", page, err)
		}
		if !resp.Success {
			return nil, fmt.Errorf("history API reported failure: %w", ErrUpstreamUnavailable)
		}
		if resp.Data.TotalPages > 0 {
			totalPages = resp.Data.TotalPages
		}

		for _, m := range resp.Data.Match {
			matchTime, err := time.Parse("2006-01-02 15:04", m.Date+" "+m.Scheduled)
			if err != nil {
				logger.Printf("[FixturesClient] Skipping result with bad time: %s vs %s", m.HomeName, m.AwayName)
				continue
			}
			fact := MatchFact{
				Team1:     c.names.CleanAPIName(m.HomeName),
				Team2:     c.names.CleanAPIName(m.AwayName),
				MatchTime: matchTime,
				Team1Odds: parseOddsValue(m.Odds.Pre.One),
				Team2Odds: parseOddsValue(m.Odds.Pre.Two),
				DrawOdds:  parseOddsValue(m.Odds.Pre.Draw),
			}
			fact.ScoreTeam1, fact.ScoreTeam2 = parseScorePair(m.FTScore)
			if m.Outcomes.PenaltyShootout != "" {
				fact.PenaltyScoreTeam1, fact.PenaltyScoreTeam2 = parseScorePair(m.PSScore)
			}
			if m.Round != "" {
				round := m.Round
				fact.Stage = &round
			}
			facts = append(facts, fact)
		}
		page++
	}
	return facts, nil
}
