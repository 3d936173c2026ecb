package scheduler

import (
	"fmt"
	"strings"

	"publisher_bot/internal/logger"
)

// logrusAdapter 将 gocron 的日志输出到全局 logrus
type logrusAdapter struct{}

func (logrusAdapter) Debug(msg string, args ...any) {
	logger.L().Debug(formatSchedulerLog(msg, args))
}

func (logrusAdapter) Info(msg string, args ...any) {
	logger.L().Info(formatSchedulerLog(msg, args))
}

func (logrusAdapter) Warn(msg string, args ...any) {
	logger.L().Warn(formatSchedulerLog(msg, args))
}

func (logrusAdapter) Error(msg string, args ...any) {
	logger.L().Error(formatSchedulerLog(msg, args))
}

// formatSchedulerLog 将 key/value 参数拼接为 "msg k=v k=v"
func formatSchedulerLog(msg string, args []any) string {
	var b strings.Builder
	b.WriteString("gocron: ")
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return b.String()
}
