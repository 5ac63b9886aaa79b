package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// GooseLogger adapts slog to the Printf/Fatalf logger goose expects.
type GooseLogger struct {
	logger *slog.Logger
}

// NewGooseLogger wraps logger so migration progress lands in the structured log.
func NewGooseLogger(logger *slog.Logger) *GooseLogger {
	return &GooseLogger{logger: NewComponentLogger(logger, "migrations")}
}

func (l *GooseLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *GooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), String(FieldEventType, "migration_fatal"))
	os.Exit(1)
}
