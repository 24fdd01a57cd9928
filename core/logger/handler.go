package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as one key-ordered kv or JSON line.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}
	isJSON := h.cfg.format == formatJSON

	rec := newRecord()
	ts := r.Time.UTC()
	rec.set("ts", ts.Truncate(time.Millisecond).Format(timeFormatMillis))
	rec.set("level", normalizeLevel(r.Level.String()))
	if isJSON {
		rec.set("ts_unix_nano", ts.UnixNano())
	}
	for _, a := range h.attrs {
		h.collect(rec, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collect(rec, a)
		return true
	})
	rec.fromContext(ctx)

	if rid, ok := rec.str("rid"); ok && rid != "" {
		if compact := CompactRID(rid); compact != rid {
			if isJSON {
				rec.setDefault("rid_full", rid)
			}
			rec.set("rid", compact)
		}
	}
	if event, _ := rec.str("event"); event == "" {
		event = r.Message
		if event == "" {
			event = "unknown"
		}
		rec.set("event", event)
	}
	if component, _ := rec.str("component"); component == "" {
		rec.set("component", CompApp)
	}
	rec.normalize()

	var line []byte
	if isJSON {
		var err error
		if line, err = rec.json(h.cfg.keyOrder); err != nil {
			return err
		}
	} else {
		line = rec.kv(h.cfg.keyOrder)
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *structuredHandler) collect(rec *record, attr slog.Attr) {
	flattenAttr(strings.Join(h.groups, "."), attr, func(k string, v slog.Value) {
		if key, val, ok := normalizeAttr(k, v); ok {
			rec.set(key, val)
		}
	})
}

func flattenAttr(prefix string, attr slog.Attr, fn func(string, slog.Value)) {
	key := attr.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	val := attr.Value.Resolve()
	if val.Kind() == slog.KindGroup {
		for _, child := range val.Group() {
			flattenAttr(key, child, fn)
		}
		return
	}
	if key != "" {
		fn(key, val)
	}
}

func normalizeAttr(key string, val slog.Value) (string, any, bool) {
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		if u := val.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, val.Uint64(), true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := val.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		// decimal amounts and order states land here
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey renames duration attributes so their unit is explicit.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_duration"):
		return key + "_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

// redacted maps keys that may carry purchaser details or secrets to their mask.
var redacted = map[string]func(string) string{
	"password": func(string) string { return "***" },
	"token":    func(string) string { return "***" },
	"address":  func(s string) string { return fmt.Sprintf("<%d chars>", len([]rune(s))) },
	"phone":    maskTail,
}

// maskTail keeps the last three characters visible.
func maskTail(s string) string {
	r := []rune(s)
	if len(r) <= 3 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-3) + string(r[len(r)-3:])
}

type contextField struct {
	key string
	get func(context.Context) any
}

// contextFields are copied from ctx unless the record already set them. Zero values are skipped.
var contextFields = []contextField{
	{"rid", func(ctx context.Context) any { return RIDFrom(ctx) }},
	{"user_id", func(ctx context.Context) any { return UserIDFrom(ctx) }},
	{"update_id", func(ctx context.Context) any { return UpdateIDFrom(ctx) }},
	{"chat_id", func(ctx context.Context) any { return ChatIDFrom(ctx) }},
	{"handler", func(ctx context.Context) any { return HandlerFrom(ctx) }},
}

// record is the flat field set of one log line.
type record struct {
	fields map[string]any
}

func newRecord() *record {
	return &record{fields: make(map[string]any, 16)}
}

func (r *record) set(key string, val any) { r.fields[key] = val }

func (r *record) setDefault(key string, val any) {
	if _, ok := r.fields[key]; !ok {
		r.fields[key] = val
	}
}

func (r *record) str(key string) (string, bool) {
	v, ok := r.fields[key]
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}

func (r *record) fromContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	for _, f := range contextFields {
		switch v := f.get(ctx).(type) {
		case string:
			if v != "" {
				r.setDefault(f.key, v)
			}
		case int:
			if v != 0 {
				r.setDefault(f.key, v)
			}
		case int64:
			if v != 0 {
				r.setDefault(f.key, v)
			}
		}
	}
}

// normalize canonicalizes enumerations, masks sensitive values and drops empty fields.
func (r *record) normalize() {
	if level, ok := r.str("level"); ok {
		r.set("level", normalizeLevel(level))
	}
	if s, _ := r.str("status"); s != "" {
		normalized, _ := normalizeStatus(s)
		r.set("status", normalized)
	}
	if st, _ := r.str("order_state"); st != "" {
		r.set("order_state", strings.ToLower(strings.TrimSpace(st)))
	}
	if o, _ := r.str("outcome"); o != "" {
		if normalized, valid := normalizeOutcome(o); valid {
			r.set("outcome", normalized)
		} else {
			delete(r.fields, "outcome")
		}
	}
	for key, mask := range redacted {
		if s, ok := r.fields[key].(string); ok && s != "" {
			r.set(key, mask(s))
		}
	}
	for k, v := range r.fields {
		switch val := v.(type) {
		case nil:
			delete(r.fields, k)
		case string:
			if val == "" {
				delete(r.fields, k)
			}
		}
	}
}

// keys returns the field names: those in order first, the rest sorted.
func (r *record) keys(order []string) []string {
	keys := make([]string, 0, len(r.fields))
	seen := make(map[string]struct{}, len(r.fields))
	for _, key := range order {
		if _, ok := r.fields[key]; ok {
			if _, dup := seen[key]; !dup {
				keys = append(keys, key)
				seen[key] = struct{}{}
			}
		}
	}
	rest := make([]string, 0, len(r.fields)-len(keys))
	for key := range r.fields {
		if _, ok := seen[key]; !ok {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func (r *record) json(order []string) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, key := range r.keys(order) {
		data, err := json.Marshal(r.fields[key])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", key, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(key))
		b.WriteByte(':')
		b.Write(data)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func (r *record) kv(order []string) []byte {
	var b strings.Builder
	for i, key := range r.keys(order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(kvValue(r.fields[key]))
	}
	return []byte(b.String())
}

func kvValue(val any) string {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		s = fmt.Sprint(v)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= 32 || r == '=' || r == '"'
}
