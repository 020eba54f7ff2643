package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

const logTimestampLayout = "2006-01-02 15:04:05"

// subjectKeys are pulled out of the attribute list and rendered in the header.
var subjectKeys = map[string]struct{}{
	FieldComponent: {},
	FieldWorker:    {},
	FieldService:   {},
	FieldItemID:    {},
	FieldStage:     {},
}

type levelPalette struct {
	debug *color.Color
	info  *color.Color
	warn  *color.Color
	err   *color.Color
	dim   *color.Color
}

func newLevelPalette(enabled bool) levelPalette {
	p := levelPalette{
		debug: color.New(color.FgHiBlack),
		info:  color.New(color.FgCyan),
		warn:  color.New(color.FgYellow, color.Bold),
		err:   color.New(color.FgRed, color.Bold),
		dim:   color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.debug, p.info, p.warn, p.err, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p levelPalette) level(level slog.Level) string {
	label := levelLabel(level)
	switch {
	case level >= slog.LevelError:
		return p.err.Sprint(label)
	case level >= slog.LevelWarn:
		return p.warn.Sprint(label)
	case level >= slog.LevelInfo:
		return p.info.Sprint(label)
	default:
		return p.debug.Sprint(label)
	}
}

type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
	palette   levelPalette
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource, colorize bool) slog.Handler {
	return &prettyHandler{
		mu:        &sync.Mutex{},
		writer:    w,
		level:     lvl,
		addSource: addSource,
		palette:   newLevelPalette(colorize),
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})
	kvs = dedupeKVsByKey(kvs)

	subject := map[string]string{}
	fields := make([]kv, 0, len(kvs))
	for _, kv := range kvs {
		if _, ok := subjectKeys[kv.key]; ok {
			subject[kv.key] = attrString(kv.value)
			continue
		}
		fields = append(fields, kv)
	}

	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var buf bytes.Buffer
	buf.Grow(256 + len(fields)*32)
	buf.WriteString(timestamp.In(time.Local).Format(logTimestampLayout))
	buf.WriteByte(' ')
	buf.WriteString(h.palette.level(record.Level))
	if component := subject[FieldComponent]; component != "" {
		buf.WriteString(" [")
		buf.WriteString(component)
		buf.WriteByte(']')
	}
	if s := FormatSubject(subject[FieldWorker], subject[FieldService], subject[FieldItemID], subject[FieldStage]); s != "" {
		buf.WriteByte(' ')
		buf.WriteString(s)
	}
	buf.WriteString(" - ")
	buf.WriteString(message)
	if h.addSource {
		if src := recordSource(record); src != nil {
			buf.WriteString(h.palette.dim.Sprint(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]"))
		}
	}
	buf.WriteByte('\n')
	for _, kv := range fields {
		buf.WriteString("    - ")
		buf.WriteString(kv.key)
		buf.WriteString(": ")
		buf.WriteString(consoleValue(kv.key, kv.value))
		buf.WriteByte('\n')
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	clone := *h
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	clone.groups = append([]string(nil), h.groups...)
	return &clone
}

// FormatSubject builds the worker/item/stage subject shown in console output,
// e.g. "Worker 2 · ytdlp abc123de (Downloading)".
func FormatSubject(worker, service, itemID, stage string) string {
	worker = strings.TrimSpace(worker)
	service = strings.TrimSpace(service)
	itemID = shortID(strings.TrimSpace(itemID))
	stage = strings.TrimSpace(stage)

	parts := make([]string, 0, 2)
	if worker != "" {
		parts = append(parts, strings.ToUpper(worker[:1])+worker[1:])
	}
	item := strings.TrimSpace(service + " " + itemID)
	switch {
	case item != "" && stage != "":
		parts = append(parts, item+" ("+stage+")")
	case item != "":
		parts = append(parts, item)
	case stage != "":
		parts = append(parts, stage)
	}
	return strings.Join(parts, " · ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type kv struct {
	key   string
	value slog.Value
}

func dedupeKVsByKey(attrs []kv) []kv {
	if len(attrs) < 2 {
		return attrs
	}
	positions := make(map[string]int, len(attrs))
	deduped := make([]kv, 0, len(attrs))
	for _, attr := range attrs {
		if attr.key == "" {
			continue
		}
		if pos, ok := positions[attr.key]; ok {
			deduped[pos].value = attr.value
			continue
		}
		positions[attr.key] = len(deduped)
		deduped = append(deduped, attr)
	}
	return deduped
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		flattenAttrs(dst, next, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(append(append([]string(nil), prefix...), key), ".")
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// recordSource mirrors slog.Record.Source (Go 1.25+) for older toolchains.
func recordSource(r slog.Record) *slog.Source {
	if r.PC == 0 {
		return nil
	}
	fs := runtime.CallersFrames([]uintptr{r.PC})
	f, _ := fs.Next()
	return &slog.Source{Function: f.Function, File: f.File, Line: f.Line}
}
