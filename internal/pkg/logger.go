package pkg

import "go.uber.org/zap"

// NewLogger 进程级 logger，production 模式输出 JSON
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
