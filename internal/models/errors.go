package models

import "errors"

var (
	// ErrRunNotFound 运行记录不存在错误
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidRunStatus 无效的运行状态错误
	ErrInvalidRunStatus = errors.New("invalid run status")
)
