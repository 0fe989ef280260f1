package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"bet-manager/logger"
)

// FactSink 接收比分事实的落库入口
type FactSink interface {
	ApplyFacts(facts []MatchFact) error
}

// ScoreFeed 比分推送队列消费者。
// 订阅外部比分源的消息队列，把收到的比分事实交给结算层落库，
// 连接断开后指数退避重连。
type ScoreFeed struct {
	url   string
	queue string
	names *TeamNameResolver
	sink  FactSink

	conn    *amqp.Connection
	channel *amqp.Channel
	done    chan bool
}

// NewScoreFeed 创建比分推送消费者
func NewScoreFeed(url, queue string, names *TeamNameResolver, sink FactSink) *ScoreFeed {
	return &ScoreFeed{
		url:   url,
		queue: queue,
		names: names,
		sink:  sink,
		done:  make(chan bool),
	}
}

// scoreMessage 队列里的一条比分消息
type scoreMessage struct {
	Team1             string   `json:"team1"`
	Team2             string   `json:"team2"`
	MatchTime         string   `json:"match_time"`
	ScoreTeam1        *int     `json:"score_team1"`
	ScoreTeam2        *int     `json:"score_team2"`
	PenaltyScoreTeam1 *int     `json:"penalty_score_team1"`
	PenaltyScoreTeam2 *int     `json:"penalty_score_team2"`
	Team1Odds         *float64 `json:"team1_odds"`
	Team2Odds         *float64 `json:"team2_odds"`
	DrawOdds          *float64 `json:"draw_odds"`
}

// Start 连接队列并开始消费，连接断开后自动重连
func (f *ScoreFeed) Start() {
	delay := 1 * time.Second
	maxDelay := 60 * time.Second

	for {
		msgs, err := f.connectAndConsume()
		if err != nil {
			logger.Errorf("[ScoreFeed] Connection failed: %v", err)
			select {
			case <-f.done:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
			continue
		}

		delay = 1 * time.Second
		logger.Println("[ScoreFeed] Started consuming score messages")

		closed := f.conn.NotifyClose(make(chan *amqp.Error))
	consume:
		for {
			select {
			case <-f.done:
				f.closeConnection()
				return
			case closeErr := <-closed:
				if closeErr != nil {
					logger.Errorf("[ScoreFeed] Connection lost: %v", closeErr)
				}
				break consume
			case msg, ok := <-msgs:
				if !ok {
					break consume
				}
				f.handleMessage(msg)
			}
		}
	}
}

// Stop 停止消费并关闭连接
func (f *ScoreFeed) Stop() {
	logger.Println("[ScoreFeed] Stopping score feed...")
	close(f.done)
}

func (f *ScoreFeed) connectAndConsume() (<-chan amqp.Delivery, error) {
	conn, err := amqp.Dial(f.url)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	f.conn = conn

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	f.channel = channel

	if err := channel.Qos(100, 0, false); err != nil {
		f.closeConnection()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	queue, err := channel.QueueDeclare(
		f.queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		f.closeConnection()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	msgs, err := channel.Consume(
		queue.Name,
		"",    // consumer
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		f.closeConnection()
		return nil, fmt.Errorf("failed to consume: %w", err)
	}
	return msgs, nil
}

func (f *ScoreFeed) closeConnection() {
	if f.channel != nil {
		f.channel.Close()
		f.channel = nil
	}
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}

func (f *ScoreFeed) handleMessage(msg amqp.Delivery) {
	var m scoreMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		logger.Errorf("[ScoreFeed] Failed to parse message: %v", err)
		return
	}
	if m.Team1 == "" || m.Team2 == "" {
		logger.Errorln("[ScoreFeed] Dropping message without team names")
		return
	}

	matchTime, err := time.Parse(time.RFC3339, m.MatchTime)
	if err != nil {
		logger.Errorf("[ScoreFeed] Bad match_time in message for %s vs %s: %v", m.Team1, m.Team2, err)
		return
	}

	// 推送源的队名先规范化，再参与 (team1, team2, match_time) 匹配
	fact := MatchFact{
		Team1:             f.names.CleanScrapedName(m.Team1),
		Team2:             f.names.CleanScrapedName(m.Team2),
		MatchTime:         matchTime,
		ScoreTeam1:        m.ScoreTeam1,
		ScoreTeam2:        m.ScoreTeam2,
		PenaltyScoreTeam1: m.PenaltyScoreTeam1,
		PenaltyScoreTeam2: m.PenaltyScoreTeam2,
		Team1Odds:         m.Team1Odds,
		Team2Odds:         m.Team2Odds,
		DrawOdds:          m.DrawOdds,
	}
	if err := f.sink.ApplyFacts([]MatchFact{fact}); err != nil {
		logger.Errorf("[ScoreFeed] Failed to apply score fact for %s vs %s: %v", m.Team1, m.Team2, err)
	}
}
