package diagnostics

import (
	"fmt"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/gridwatch/gridwatch/internal/logging"
)

const timestampFormat = "02-01-2006 15:04:05.000"

// LogWriter renders named, nestable sections of key/value entries. Every
// StartSection must be matched by exactly one EndSection; sections close in
// LIFO order. Writes inside an open top-level section are buffered and hit
// the sink as one atomic chunk when the section closes.
//
// A LogWriter is not safe for concurrent use; the scheduler goroutine is
// its only caller.
type LogWriter interface {
	StartSection(name string)
	EndSection()
	WriteKeyValue(key string, value any)
	WriteKeyValueAsDateTime(key string, millis int64)
	// WriteSectionKeyValue writes a complete one-line section stamped with
	// the given time. Used by plugins that emit many flat entries sharing
	// one timestamp.
	WriteSectionKeyValue(section string, timeMillis int64, key string, value any)
}

type logWriter struct {
	sink             sink
	includeEpochTime bool
	logger           *logging.Logger

	depth             int
	buf               *bytebufferpool.ByteBuffer
	nestingViolations int64
}

func newLogWriter(s sink, includeEpochTime bool, logger *logging.Logger) *logWriter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &logWriter{
		sink:             s,
		includeEpochTime: includeEpochTime,
		logger:           logger,
	}
}

func (w *logWriter) StartSection(name string) {
	if w.depth == 0 {
		w.buf = bytebufferpool.Get()
		w.writeTimestamp(w.buf, time.Now())
	} else {
		w.indent()
	}
	w.buf.WriteString(name)
	w.buf.WriteString("[\n")
	w.depth++
}

func (w *logWriter) EndSection() {
	if w.depth == 0 {
		w.nestingViolations++
		w.logger.Error("diagnostics log writer: EndSection without open section")
		return
	}
	w.depth--
	w.indent()
	w.buf.WriteString("]\n")
	if w.depth == 0 {
		w.flush()
	}
}

func (w *logWriter) WriteKeyValue(key string, value any) {
	if w.depth == 0 {
		// Caller contract violation; drop the entry rather than corrupt
		// the stream.
		w.nestingViolations++
		w.logger.Error("diagnostics log writer: entry outside section", "key", key)
		return
	}
	w.indent()
	w.buf.WriteString(key)
	w.buf.WriteByte('=')
	fmt.Fprintf(w.buf, "%v", value)
	w.buf.WriteByte('\n')
}

func (w *logWriter) WriteKeyValueAsDateTime(key string, millis int64) {
	w.WriteKeyValue(key, time.UnixMilli(millis).Format(timestampFormat))
}

func (w *logWriter) WriteSectionKeyValue(section string, timeMillis int64, key string, value any) {
	if w.depth != 0 {
		// Flat sections interleaved with an open nested section would tear
		// the stream; render inline as a nested section instead.
		w.StartSection(section)
		w.WriteKeyValue(key, value)
		w.EndSection()
		return
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	w.writeTimestamp(buf, time.UnixMilli(timeMillis))
	buf.WriteString(section)
	buf.WriteByte('[')
	buf.WriteString(key)
	buf.WriteByte('=')
	fmt.Fprintf(buf, "%v", value)
	buf.WriteString("]\n")
	w.sink.write(buf.Bytes())
}

// NestingViolations returns how many unbalanced calls were recorded.
func (w *logWriter) NestingViolations() int64 {
	return w.nestingViolations
}

// reset discards any partially written section. Called after a plugin
// failure so the next plugin starts from a clean stream.
func (w *logWriter) reset() {
	if w.depth == 0 {
		return
	}
	w.depth = 0
	if w.buf != nil {
		bytebufferpool.Put(w.buf)
		w.buf = nil
	}
}

func (w *logWriter) flush() {
	w.sink.write(w.buf.Bytes())
	bytebufferpool.Put(w.buf)
	w.buf = nil
}

func (w *logWriter) indent() {
	for i := 0; i < w.depth; i++ {
		w.buf.WriteString("    ")
	}
}

func (w *logWriter) writeTimestamp(buf *bytebufferpool.ByteBuffer, t time.Time) {
	buf.WriteString(t.Format(timestampFormat))
	buf.WriteByte(' ')
	if w.includeEpochTime {
		fmt.Fprintf(buf, "%d ", t.UnixMilli())
	}
}
