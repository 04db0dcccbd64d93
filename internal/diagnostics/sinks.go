package diagnostics

import (
	"io"
	"os"
	"strings"

	"github.com/gridwatch/gridwatch/internal/logging"
)

// sink is where rendered sections end up. Implementations are called from
// the scheduler goroutine only; write is best-effort and must never panic
// or propagate I/O failures.
type sink interface {
	write(p []byte)
	close()
}

// writerSink wraps any io.Writer, typically stdout.
type writerSink struct {
	w      io.Writer
	logger *logging.Logger
}

func newWriterSink(w io.Writer, logger *logging.Logger) *writerSink {
	return &writerSink{w: w, logger: logger}
}

func (s *writerSink) write(p []byte) {
	if _, err := s.w.Write(p); err != nil && s.logger != nil {
		s.logger.Warn("diagnostics write failed", "error", err)
	}
}

func (s *writerSink) close() {}

func newStdoutSink(logger *logging.Logger) *writerSink {
	return newWriterSink(os.Stdout, logger)
}

// loggerSink routes sections through the node logger, one log record per
// flushed section.
type loggerSink struct {
	logger *logging.Logger
}

func newLoggerSink(logger *logging.Logger) *loggerSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &loggerSink{logger: logger}
}

func (s *loggerSink) write(p []byte) {
	s.logger.Info(strings.TrimRight(string(p), "\n"))
}

func (s *loggerSink) close() {}
