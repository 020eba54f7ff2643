package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// byteKeys are field names whose integer values count bytes.
var byteKeys = map[string]struct{}{
	"bytes":      {},
	"size":       {},
	"free_bytes": {},
}

// attrString renders a value without quoting, for stream events and subjects.
func attrString(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return plainValue(v)
}

// consoleValue renders a field for the pretty console handler. Byte counts
// read as sizes, durations are rounded, and strings with control characters
// are quoted.
func consoleValue(key string, v slog.Value) string {
	v = v.Resolve()
	if _, ok := byteKeys[key]; ok {
		switch v.Kind() {
		case slog.KindInt64:
			if n := v.Int64(); n >= 0 {
				return fmt.Sprintf("%s (%d)", humanize.IBytes(uint64(n)), n)
			}
		case slog.KindUint64:
			return fmt.Sprintf("%s (%d)", humanize.IBytes(v.Uint64()), v.Uint64())
		}
	}
	if v.Kind() == slog.KindDuration {
		return roundDuration(v.Duration()).String()
	}
	s := plainValue(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r < ' ' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func plainValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().In(time.Local).Format(logTimestampLayout)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func roundDuration(d time.Duration) time.Duration {
	switch {
	case d >= time.Minute:
		return d.Round(time.Second)
	case d >= time.Second:
		return d.Round(10 * time.Millisecond)
	default:
		return d
	}
}
