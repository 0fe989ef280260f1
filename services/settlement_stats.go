package services

import (
	"sync"
	"time"
)

// SettlementStats 结算轮次的运行统计
type SettlementStats struct {
	mu           sync.RWMutex
	totalPasses  int64
	failedPasses int64
	lastRunAt    time.Time
	lastError    string
	stepCounters map[string]int64
}

// NewSettlementStats 创建结算统计
func NewSettlementStats() *SettlementStats {
	return &SettlementStats{
		stepCounters: make(map[string]int64),
	}
}

// RecordPass 记录一轮结算完成
func (s *SettlementStats) RecordPass() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalPasses++
	s.lastRunAt = time.Now()
	s.lastError = ""
}

// RecordFailure 记录一轮结算失败
func (s *SettlementStats) RecordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedPasses++
	s.lastRunAt = time.Now()
	if err != nil {
		s.lastError = err.Error()
	}
}

// RecordStep 记录某个结算步骤处理的行数
func (s *SettlementStats) RecordStep(step string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepCounters[step] += int64(count)
}

// Snapshot 返回当前统计快照
func (s *SettlementStats) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := make(map[string]int64, len(s.stepCounters))
	for k, v := range s.stepCounters {
		steps[k] = v
	}

	snapshot := map[string]interface{}{
		"total_passes":  s.totalPasses,
		"failed_passes": s.failedPasses,
		"steps":         steps,
	}
	if !s.lastRunAt.IsZero() {
		snapshot["last_run_at"] = s.lastRunAt.Format(time.RFC3339)
	}
	if s.lastError != "" {
		snapshot["last_error"] = s.lastError
	}
	return snapshot
}
