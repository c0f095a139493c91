package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// FixedFormatWriter turns zerolog JSON lines into fixed-width columns,
// used for the log file when Logging.json sets Format to "fixed":
//
//	2026-10-19 08:12:04.311 [INF] [tracking          ] Tracking started interval=10000
//	2026-10-19 08:12:04.312 [WRN] [location-client   ] Location stream not opened reason="missing location authorization"
type FixedFormatWriter struct {
	w io.Writer
}

// NewFixedFormatWriter wraps w.
func NewFixedFormatWriter(w io.Writer) *FixedFormatWriter {
	return &FixedFormatWriter{w: w}
}

const componentWidth = 18

var levelAbbrev = map[string]string{
	"trace": "TRC",
	"debug": "DBG",
	"info":  "INF",
	"warn":  "WRN",
	"error": "ERR",
	"fatal": "FTL",
	"panic": "PNC",
}

// reserved fields are rendered in fixed columns or hidden.
var reserved = []string{"time", "level", "component", "message", "caller"}

func (f *FixedFormatWriter) Write(p []byte) (int, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		return f.w.Write(p)
	}

	ts := formatTimestamp(stringField(fields, "time"))
	lvl, ok := levelAbbrev[stringField(fields, "level")]
	if !ok {
		lvl = "???"
	}
	comp := stringField(fields, "component")
	if len(comp) > componentWidth {
		comp = comp[:componentWidth]
	}
	msg := stringField(fields, "message")

	for _, k := range reserved {
		delete(fields, k)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%-*s] %s", ts, lvl, componentWidth, comp, msg)
	if extra := formatExtra(fields); extra != "" {
		b.WriteByte(' ')
		b.WriteString(extra)
	}
	b.WriteByte('\n')

	_, err := io.WriteString(f.w, b.String())
	// zerolog checks n against len(p).
	return len(p), err
}

func stringField(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// formatTimestamp renders an RFC3339 timestamp as a 23 character
// "2006-01-02 15:04:05.000" local-clock string, dropping the zone.
func formatTimestamp(ts string) string {
	const width = 23
	if len(ts) < 19 {
		return strings.Repeat(" ", width)
	}

	out := strings.Replace(ts, "T", " ", 1)
	if i := strings.IndexAny(out[19:], "Z+-"); i >= 0 {
		out = out[:19+i]
	}

	frac := ""
	if len(out) > 19 && out[19] == '.' {
		frac = out[20:]
	}
	switch {
	case len(frac) > 3:
		frac = frac[:3]
	case len(frac) < 3:
		frac += strings.Repeat("0", 3-len(frac))
	}
	return out[:19] + "." + frac
}

// formatExtra renders the remaining fields as sorted key=value pairs.
func formatExtra(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprintf("%v", fields[k])
		if strings.ContainsAny(v, " \t\n\"") {
			parts = append(parts, fmt.Sprintf("%s=%q", k, v))
			continue
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}
