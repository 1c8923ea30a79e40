package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// NewFriendlyErrorHandler returns a slog.Handler that renders error records
// for a terminal:
//
//	Error: [wallet] cardano-wallet failed to start
//	  error: exec: "cardano-wallet": executable file not found in $PATH
//	  exe: cardano-wallet
func NewFriendlyErrorHandler(w io.Writer) slog.Handler {
	return &friendlyHandler{w: w, mu: &sync.Mutex{}}
}

type friendlyHandler struct {
	w      io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

type attrEntry struct {
	key   string
	value string
}

func (h *friendlyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *friendlyHandler) Handle(_ context.Context, record slog.Record) error {
	entries := h.collectEntries(record)

	var component, cause string
	others := make([]attrEntry, 0, len(entries))
	for _, entry := range entries {
		switch {
		case entry.key == "component":
			component = entry.value
		case entry.key == "error" && cause == "":
			cause = entry.value
		case entry.value != "":
			others = append(others, entry)
		}
	}

	summary := strings.TrimSpace(record.Message)
	if summary == "" {
		summary, cause = cause, ""
	}
	if summary == "" {
		summary = "an unknown error occurred"
	}
	if component != "" {
		summary = "[" + component + "] " + summary
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", summary)
	if cause != "" {
		writeEntry(&sb, attrEntry{key: "error", value: cause})
	}

	sort.SliceStable(others, func(i, j int) bool {
		return others[i].key < others[j].key
	})
	for _, entry := range others {
		writeEntry(&sb, entry)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *friendlyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	for _, attr := range attrs {
		attr.Key = h.fullKey(attr.Key)
		clone.attrs = append(clone.attrs, attr)
	}
	return clone
}

func (h *friendlyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *friendlyHandler) clone() *friendlyHandler {
	return &friendlyHandler{
		w:      h.w,
		mu:     h.mu,
		attrs:  append([]slog.Attr(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
	}
}

func (h *friendlyHandler) collectEntries(record slog.Record) []attrEntry {
	entries := make([]attrEntry, 0, len(h.attrs)+record.NumAttrs())
	for _, attr := range h.attrs {
		entries = append(entries, attrEntry{key: attr.Key, value: valueString(attr.Value)})
	}
	record.Attrs(func(attr slog.Attr) bool {
		entries = append(entries, attrEntry{key: h.fullKey(attr.Key), value: valueString(attr.Value)})
		return true
	})
	return entries
}

func (h *friendlyHandler) fullKey(key string) string {
	if len(h.groups) == 0 {
		return key
	}
	return strings.Join(h.groups, ".") + "." + key
}

func valueString(val slog.Value) string {
	val = val.Resolve()
	switch val.Kind() {
	case slog.KindGroup:
		group := val.Group()
		parts := make([]string, 0, len(group))
		for _, attr := range group {
			parts = append(parts, attr.Key+"="+valueString(attr.Value))
		}
		return strings.Join(parts, ", ")
	case slog.KindAny:
		raw := val.Any()
		if err, ok := raw.(error); ok {
			return err.Error()
		}
		if s, ok := raw.(fmt.Stringer); ok {
			return s.String()
		}
		return fmt.Sprint(raw)
	default:
		return val.String()
	}
}

func writeEntry(sb *strings.Builder, entry attrEntry) {
	val := strings.TrimSpace(entry.value)
	lines := strings.Split(val, "\n")
	fmt.Fprintf(sb, "  %s: %s\n", entry.key, strings.TrimSpace(lines[0]))
	for _, line := range lines[1:] {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			fmt.Fprintf(sb, "    %s\n", trimmed)
		}
	}
}
