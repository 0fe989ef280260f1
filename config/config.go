package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// 数据库配置
	DatabaseURL string

	// 服务器配置
	Port string

	// 其他配置
	Environment string

	// 认证配置
	JWTSecret      string
	TokenExpiresIn time.Duration

	// 赛程/赛果 API 配置
	FixturesAPIURL   string
	HistoryAPIURL    string
	LiveScoresKey    string
	LiveScoresSecret string
	CompetitionID    string

	// 赔率 API 配置
	OddsAPIURL string
	OddsAPIKey string

	// 球队/球员数据 API 配置
	StatsAPIURL string

	// 实时比分推送配置（可选，留空则禁用）
	AMQPURL        string
	ScoreFeedQueue string

	// 结算配置
	SettlementInterval time.Duration // 结算批次间隔
	GameDuration       time.Duration // 比赛标准时长，用于推导比赛状态

	// 阶段 -> 每场预算权重表
	StageWeights map[string]int

	// 球队名称规范化表（抓取源变体 -> 规范名）
	TeamNameMapping map[string]string

	// 赛果 API 的球队名称规范化表
	APITeamMapping map[string]string
}

func Load() *Config {
	return &Config{
		// 数据库配置
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/betmanager?sslmode=disable"),

		// 服务器配置
		Port: getEnv("PORT", "8080"),

		// 其他配置
		Environment: getEnv("ENVIRONMENT", "development"),

		// 认证配置
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenExpiresIn: time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,

		// 赛程/赛果 API 配置
		FixturesAPIURL:   getEnv("LIVE_SCORES_API_FIXTURES_ENDPOINT", "https://livescore-api.com/api-client/fixtures/list.json"),
		HistoryAPIURL:    getEnv("LIVE_SCORES_API_HISTORY_ENDPOINT", "https://livescore-api.com/api-client/scores/history.json"),
		LiveScoresKey:    getEnv("LIVE_SCORES_API_KEY", ""),
		LiveScoresSecret: getEnv("LIVE_SCORES_API_SECRET", ""),
		CompetitionID:    getEnv("LIVE_SCORES_CL_COMP_ID", "244"),

		// 赔率 API 配置
		OddsAPIURL: getEnv("BETTING_ODDS_API_URL", "https://api.the-odds-api.com/v4/sports/soccer_uefa_champs_league/odds/"),
		OddsAPIKey: getEnv("BETTING_ODDS_API_KEY", ""),

		// 球队/球员数据 API 配置
		StatsAPIURL: getEnv("STATS_API_URL", "https://livescore-api.com/api-client/competitions"),

		// 实时比分推送配置
		AMQPURL:        getEnv("AMQP_URL", ""),
		ScoreFeedQueue: getEnv("SCORE_FEED_QUEUE", "score_updates"),

		// 结算配置
		SettlementInterval: time.Duration(getEnvInt("SETTLEMENT_INTERVAL_HOURS", 6)) * time.Hour,
		GameDuration:       time.Duration(getEnvInt("GAME_DURATION_HOURS", 3)) * time.Hour,

		StageWeights:    defaultStageWeights(),
		TeamNameMapping: defaultTeamNameMapping(),
		APITeamMapping:  defaultAPITeamMapping(),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(value)
	if err != nil || result == 0 {
		return defaultValue
	}
	return result
}

// defaultStageWeights 每日预算 = 当日场次 x 当日首场比赛所属阶段的权重
func defaultStageWeights() map[string]int {
	return map[string]int{
		"League phase":             2,
		"Knockout phase play-offs": 3,
		"Round of 16":              4,
		"Quarter-finals":           5,
		"Semi-finals":              8,
		"Final":                    10,
	}
}

// defaultTeamNameMapping 抓取源的球队名变体（带国家码前后缀）
func defaultTeamNameMapping() map[string]string {
	return map[string]string{
		"Dortmundde":          "Borussia Dortmund",
		"deDortmund":          "Borussia Dortmund",
		"Sporting CPpt":       "Sporting Lisbon",
		"ptSporting CP":       "Sporting Lisbon",
		"Manchester Cityeng":  "Manchester City",
		"engManchester City":  "Manchester City",
		"Real Madrides":       "Real Madrid",
		"esReal Madrid":       "Real Madrid",
		"esBarcelona":         "Barcelona",
		"Barcelonaes":         "Barcelona",
		"Paris S-Gfr":         "Paris Saint Germain",
		"frParis S-G":         "Paris Saint Germain",
		"Atalantait":          "Atalanta",
		"itAtalanta":          "Atalanta",
		"Juventusit":          "Juventus",
		"itJuventus":          "Juventus",
		"Bayern Munichde":     "Bayern München",
		"deBayern Munich":     "Bayern München",
		"engLiverpool":        "Liverpool",
		"Liverpooleng":        "Liverpool",
		"engArsenal":          "Arsenal",
		"Arsenaleng":          "Arsenal",
		"Milanit":             "AC Milan",
		"itMilan":             "AC Milan",
		"Atletico Madrides":   "Atletico Madrid",
		"esAtletico Madrid":   "Atletico Madrid",
		"esAtlético Madrid":   "Atletico Madrid",
		"Atlético Madrides":   "Atletico Madrid",
		"Benficapt":           "Benfica",
		"ptBenfica":           "Benfica",
		"Portopt":             "Porto",
		"ptPorto":             "Porto",
		"deStuttgart":         "Stuttgart",
		"Stuttgartde":         "Stuttgart",
		"Feyenoordnl":         "Feyenoord",
		"nlFeyenoord":         "Feyenoord",
		"RB Leipzigde":        "RB Leipzig",
		"deRB Leipzig":        "RB Leipzig",
		"nlPSV Eindhoven":     "PSV Eindhoven",
		"PSV Eindhovennl":     "PSV Eindhoven",
		"Bolognait":           "Bologna",
		"itBologna":           "Bologna",
		"Sparta Praguecz":     "Sparta Prague",
		"czSparta Prague":     "Sparta Prague",
		"Celticsct":           "Celtic",
		"sctCeltic":           "Celtic",
		"frLille":             "Lille",
		"Lillefr":             "Lille",
		"itInter":             "Inter",
		"Interit":             "Inter",
		"Young Boysch":        "Young Boys",
		"chYoung Boys":        "Young Boys",
		"engAston Villa":      "Aston Villa",
		"Aston Villaeng":      "Aston Villa",
		"Monacofr":            "Monaco",
		"frMonaco":            "Monaco",
		"hrDinamo Zagreb":     "Dinamo Zagreb",
		"Dinamo Zagrebhr":     "Dinamo Zagreb",
		"atRB Salzburg":       "RB Salzburg",
		"RB Salzburgat":       "RB Salzburg",
		"skSlovan Bratislava": "Slovan Bratislava",
		"Slovan Bratislavask": "Slovan Bratislava",
		"uaShakhtar":          "Shakhtar Donetsk",
		"Shakhtarua":          "Shakhtar Donetsk",
		"esGirona":            "Girona",
		"Gironaes":            "Girona",
		"Club Bruggebe":       "Club Brugge",
		"beClub Brugge":       "Club Brugge",
		"deLeverkusen":        "Bayer Leverkusen",
		"Leverkusende":        "Bayer Leverkusen",
		"Red Starrs":          "Red Star",
		"rsRed Star":          "Red Star",
		"atSturm Graz":        "Sturm Graz",
		"Sturm Grazat":        "Sturm Graz",
		"frBrest":             "Brest",
		"Brestfr":             "Brest",
	}
}

// defaultAPITeamMapping 赛果 API 的球队名变体
func defaultAPITeamMapping() map[string]string {
	return map[string]string{
		"Bayern Munich":          "Bayern München",
		"Sporting CP":            "Sporting Lisbon",
		"VfB Stuttgart":          "Stuttgart",
		"RasenBallsport Leipzig": "RB Leipzig",
		"FK Crvena Zvezda":       "Red Star",
		"Salzburg":               "RB Salzburg",
		"Bayer 04 Leverkusen":    "Bayer Leverkusen",
	}
}
