package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// clearLine returns the cursor to column 0 and erases the line.
const clearLine = "\r\x1b[2K"

// consoleState is shared by a handler and every handler derived from it.
type consoleState struct {
	mu       sync.Mutex
	w        io.Writer
	progress bool
}

// ConsoleHandler writes human-readable lines of the form
//
//	2026-01-02T03:04:05.000Z|I| message key=value
//
// Records at or above the minimum level become regular lines. On a terminal,
// records below it are not dropped but rewrite a single progress line in
// place, which the next regular line clears first.
type ConsoleHandler struct {
	state  *consoleState
	min    slog.Level
	tty    bool
	attrs  []slog.Attr
	groups []string
}

// NewConsoleHandler creates a ConsoleHandler writing to w. tty enables the
// in-place progress line.
func NewConsoleHandler(w io.Writer, min slog.Level, tty bool) *ConsoleHandler {
	return &ConsoleHandler{
		state: &consoleState{w: w},
		min:   min,
		tty:   tty,
	}
}

// Enabled implements slog.Handler.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.printable(level) || h.progressEnabled()
}

func (h *ConsoleHandler) printable(level slog.Level) bool {
	return h.min < LevelTTY && level >= h.min
}

func (h *ConsoleHandler) progressEnabled() bool {
	return h.tty && h.min <= LevelTTY
}

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteByte('|')

	printable := h.printable(r.Level)
	if printable {
		b.WriteString(levelLetter(r.Level))
	} else {
		b.WriteString(levelLetter(LevelTrace))
	}
	b.WriteString("| ")
	b.WriteString(r.Message)

	// h.attrs were qualified by WithAttrs with the groups open at that time.
	for _, a := range h.attrs {
		appendAttr(&b, "", a)
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, prefix, a)
		return true
	})

	h.state.mu.Lock()
	defer h.state.mu.Unlock()

	if printable {
		if h.state.progress {
			if _, err := io.WriteString(h.state.w, clearLine); err != nil {
				return err
			}
			h.state.progress = false
		}
		b.WriteByte('\n')
		_, err := io.WriteString(h.state.w, b.String())
		return err
	}

	if !h.progressEnabled() {
		return nil
	}
	if h.state.progress {
		if _, err := io.WriteString(h.state.w, clearLine); err != nil {
			return err
		}
	}
	h.state.progress = true
	_, err := io.WriteString(h.state.w, b.String())
	return err
}

// EndProgress clears a pending progress line, if any. Call it before writing
// to the same terminal by other means.
func (h *ConsoleHandler) EndProgress() {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	if h.state.progress {
		_, _ = io.WriteString(h.state.w, clearLine)
		h.state.progress = false
	}
}

// WithAttrs implements slog.Handler.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	prefix := strings.Join(h.groups, ".")
	c.attrs = append(append([]slog.Attr{}, h.attrs...), qualify(prefix, attrs)...)
	return &c
}

// WithGroup implements slog.Handler.
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.groups = append(append([]string{}, h.groups...), name)
	return &c
}

// qualify bakes the current group prefix into attrs added by WithAttrs, so
// later groups do not apply to them.
func qualify(prefix string, attrs []slog.Attr) []slog.Attr {
	if prefix == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + "." + a.Key, Value: a.Value}
	}
	return out
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			appendAttr(b, key, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindDuration:
		s = v.Duration().String()
	case slog.KindTime:
		s = v.Time().UTC().Format(time.RFC3339)
	default:
		s = fmt.Sprint(v.Any())
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
