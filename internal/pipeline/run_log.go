package pipeline

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/models"
)

// runLog accumulates the time-stamped log trail of one run and mirrors each
// line to the run's correlated logger.
type runLog struct {
	lines  []string
	logger arbor.ILogger
	now    func() time.Time
	stage  models.StageName
}

func newRunLog(logger arbor.ILogger, now func() time.Time, prior []string) *runLog {
	l := &runLog{logger: logger, now: now}
	l.lines = append(l.lines, prior...)
	return l
}

func (l *runLog) info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.append("INFO", msg)
	l.logger.Info().Str("stage", string(l.stage)).Msg(msg)
}

func (l *runLog) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.append("WARN", msg)
	l.logger.Warn().Str("stage", string(l.stage)).Msg(msg)
}

func (l *runLog) error(err error, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.append("ERROR", fmt.Sprintf("%s: %v", msg, err))
	l.logger.Error().Err(err).Str("stage", string(l.stage)).Msg(msg)
}

func (l *runLog) append(level, msg string) {
	line := fmt.Sprintf("%s [%s] %s", l.now().UTC().Format(time.RFC3339), level, msg)
	l.lines = append(l.lines, line)
}

func (l *runLog) snapshot() []string {
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}
