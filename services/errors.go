package services

import "errors"

var (
	// ErrNotFound 实体不存在
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput 无效输入，在任何写操作之前拒绝
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientBudget 当日预算不足
	ErrInsufficientBudget = errors.New("insufficient gameday budget")

	// ErrBetLocked 投注已锁定，不允许修改
	ErrBetLocked = errors.New("bet is locked")

	// ErrGameResultPending 比赛结果尚未产生
	ErrGameResultPending = errors.New("game result pending")

	// ErrUpstreamUnavailable 外部数据源不可用，跳过本轮重试
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrAlreadyExists 实体已存在
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized 未授权
	ErrUnauthorized = errors.New("unauthorized")
)
