package ollama

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/kalambet/christopher/internal/task"
)

// maxRecordSize bounds a single NDJSON record.
const maxRecordSize = 1 << 20

// Stream is a single-use sequence of response fragments read from an open
// /api/generate connection.
type Stream struct {
	body     io.ReadCloser
	logger   *slog.Logger
	consumed bool
	skipped  int
	err      error
}

func newStream(body io.ReadCloser, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{body: body, logger: logger}
}

// Fragments yields each "response" fragment in arrival order. Records that
// fail to parse, including records longer than maxRecordSize, are skipped
// with a warning. The sequence ends when the connection closes; ranging over
// it a second time yields nothing.
func (s *Stream) Fragments() iter.Seq[string] {
	return func(yield func(string) bool) {
		if s.consumed {
			return
		}
		s.consumed = true
		defer s.body.Close()

		r := bufio.NewReaderSize(s.body, 64*1024)
		var buf []byte
		for lineNo := 1; ; lineNo++ {
			line, oversized, err := readRecord(r, buf)
			buf = line

			if oversized {
				s.skipped++
				s.logger.Warn("skipping oversized stream fragment", "line", lineNo, "limit", maxRecordSize)
			} else if raw := bytes.TrimSpace(line); len(raw) > 0 {
				var rec generateResponse
				if jerr := json.Unmarshal(raw, &rec); jerr != nil {
					s.skipped++
					s.logger.Warn("skipping malformed stream fragment", "line", lineNo, "error", jerr)
				} else if rec.Error != "" {
					s.logger.Warn("backend reported an error mid-stream", "line", lineNo, "error", rec.Error)
				} else if rec.Response != "" {
					if !yield(rec.Response) {
						return
					}
				}
			}

			if err != nil {
				if !errors.Is(err, io.EOF) {
					s.err = fmt.Errorf("%w: reading stream: %v", ErrUnavailable, err)
				}
				return
			}
		}
	}
}

// readRecord reads one newline-terminated record into buf. A record longer
// than maxRecordSize is drained up to its newline and reported as oversized
// with no bytes. The error is io.EOF once the body is exhausted.
func readRecord(r *bufio.Reader, buf []byte) ([]byte, bool, error) {
	buf = buf[:0]
	oversized := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !oversized {
			if len(buf)+len(chunk) > maxRecordSize {
				oversized = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return buf, oversized, err
	}
}

// Skipped returns how many malformed records were dropped so far.
func (s *Stream) Skipped() int {
	return s.skipped
}

// Err returns the read error that ended iteration early, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the connection without reading the remaining records. It
// is safe to call after Fragments has drained the stream.
func (s *Stream) Close() error {
	s.consumed = true
	return s.body.Close()
}

// Aggregate concatenates fragments in arrival order. An empty or
// whitespace-only result is replaced by task.SentinelNoOutput.
func Aggregate(fragments iter.Seq[string]) string {
	var sb strings.Builder
	for f := range fragments {
		sb.WriteString(f)
	}
	out := sb.String()
	if strings.TrimSpace(out) == "" {
		return task.SentinelNoOutput
	}
	return out
}
