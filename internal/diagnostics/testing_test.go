package diagnostics

import (
	"fmt"
	"strings"
	"sync"
)

// fakeWriter records LogWriter calls for assertions. Unlike the real
// writer it is safe for concurrent use, so tests can read while a
// scheduler goroutine writes.
type fakeWriter struct {
	mu    sync.Mutex
	lines []string
	depth int
}

func (f *fakeWriter) StartSection(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, fmt.Sprintf("start:%s", name))
	f.depth++
}

func (f *fakeWriter) EndSection() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, "end")
	f.depth--
}

func (f *fakeWriter) WriteKeyValue(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, fmt.Sprintf("kv:%s=%v", key, value))
}

func (f *fakeWriter) WriteKeyValueAsDateTime(key string, millis int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, fmt.Sprintf("kvdt:%s=%d", key, millis))
}

func (f *fakeWriter) WriteSectionKeyValue(section string, timeMillis int64, key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, fmt.Sprintf("flat:%s@%d:%s=%v", section, timeMillis, key, value))
}

func (f *fakeWriter) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lines))
	copy(out, f.lines)
	return out
}

func (f *fakeWriter) Depth() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.depth
}

func (f *fakeWriter) Contains(substr string) bool {
	for _, l := range f.Lines() {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// captureSink collects everything written by a real logWriter.
type captureSink struct {
	mu     sync.Mutex
	chunks []string
	closed bool
}

func (s *captureSink) write(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, string(p))
}

func (s *captureSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *captureSink) Chunks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.chunks))
	copy(out, s.chunks)
	return out
}

func (s *captureSink) All() string {
	return strings.Join(s.Chunks(), "")
}
