package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gridwatch/gridwatch/internal/logging"
)

const bytesPerMB = 1024 * 1024

const (
	openMaxElapsed   = 2 * time.Second
	brokenRetryDelay = 30 * time.Second
)

// rollingFileSink writes to a ring of at most maxCount files, each capped
// at maxSizeBytes. Rolling happens synchronously on the writer goroutine;
// no other thread ever touches the files. All I/O failures are logged and
// swallowed: diagnostics must never take the node down over a full disk.
type rollingFileSink struct {
	dir          string
	prefix       string
	maxSizeBytes int64
	maxCount     int
	logger       *logging.Logger

	index        int
	bytesWritten int64
	file         *os.File

	// After exhausting open retries the sink goes quiet for retryDelay
	// instead of paying the backoff cost on every write.
	broken     bool
	retryAt    time.Time
	retryDelay time.Duration
	maxElapsed time.Duration
}

func newRollingFileSink(dir, prefix string, maxSizeMB, maxCount int, logger *logging.Logger) *rollingFileSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &rollingFileSink{
		dir:          dir,
		prefix:       prefix,
		maxSizeBytes: int64(maxSizeMB) * bytesPerMB,
		maxCount:     maxCount,
		logger:       logger,
		retryDelay:   brokenRetryDelay,
		maxElapsed:   openMaxElapsed,
	}
}

func (s *rollingFileSink) write(p []byte) {
	if s.file == nil {
		if !s.openCurrent() {
			return
		}
	}

	n, err := s.file.Write(p)
	s.bytesWritten += int64(n)
	if err != nil {
		s.logger.Warn("diagnostics file write failed", "file", s.file.Name(), "error", err)
		return
	}

	if s.bytesWritten >= s.maxSizeBytes {
		s.roll()
	}
}

func (s *rollingFileSink) close() {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
}

// fileName returns the ring member name for the given index.
func (s *rollingFileSink) fileName(index int) string {
	name := fmt.Sprintf("%sdiagnostics-%d-%03d.log", s.prefix, os.Getpid(), index)
	return filepath.Join(s.dir, name)
}

// openCurrent creates the active file, retrying transient failures with
// backoff. After retries are exhausted the sink marks itself broken and
// stays quiet for a cooldown, then tries again; output written while
// broken is lost.
func (s *rollingFileSink) openCurrent() bool {
	if s.broken {
		if time.Now().Before(s.retryAt) {
			return false
		}
		s.broken = false
	}

	open := func() error {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(s.fileName(s.index), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		s.file = f
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = s.maxElapsed

	if err := backoff.Retry(open, policy); err != nil {
		s.logger.Warn("diagnostics file open failed", "file", s.fileName(s.index), "error", err)
		s.broken = true
		s.retryAt = time.Now().Add(s.retryDelay)
		return false
	}
	s.bytesWritten = 0
	s.prune()
	return true
}

// roll closes the active file and steps the index; the next write opens
// the new ring member.
func (s *rollingFileSink) roll() {
	s.close()
	s.index++
	s.broken = false
}

// prune removes the file that fell out of the ring, keeping at most
// maxCount files including the active one.
func (s *rollingFileSink) prune() {
	stale := s.index - s.maxCount
	if stale < 0 {
		return
	}
	if err := os.Remove(s.fileName(stale)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("diagnostics file prune failed", "file", s.fileName(stale), "error", err)
	}
}
