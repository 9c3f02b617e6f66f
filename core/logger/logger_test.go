package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestHandlerAppendsContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := slog.New(newHandler(buf, slog.LevelInfo, false)).With("component", "flow")

	ctx := WithRID(Background(), "u42-7")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)
	ctx = WithReadingID(ctx, "01HZX")
	LogEvent(ctx, log, slog.LevelInfo, "deliver",
		slog.String("status", "ok"),
		slog.Duration("duration", 1500*time.Microsecond),
	)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"component":   "flow",
		"event":       "deliver",
		"status":      "ok",
		"rid":         "u42-7",
		"update_id":   float64(42),
		"user_id":     float64(7),
		"chat_id":     float64(9),
		"reading_id":  "01HZX",
		"duration_ms": float64(2),
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %v", k, line[k], v)
		}
	}
	if _, ok := line["msg"]; ok {
		t.Error("empty msg should be dropped")
	}
	if _, ok := line["ts"]; !ok {
		t.Error("missing ts")
	}
}

func TestHandlerTextFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := slog.New(newHandler(buf, slog.LevelInfo, true))

	LogEvent(WithHandler(Background(), "cb:begin"), log, slog.LevelWarn, "notify")

	line := buf.String()
	for _, part := range []string{"level=WARN", "event=notify", "handler=cb:begin"} {
		if !strings.Contains(line, part) {
			t.Errorf("%q missing %q", line, part)
		}
	}
}

func TestHandlerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := slog.New(newHandler(buf, slog.LevelInfo, false))
	LogEvent(Background(), log, slog.LevelDebug, "noise")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %s", buf.String())
	}
}

func TestPrivateChatOmitsChatID(t *testing.T) {
	attrs := Fields{UserID: 5, ChatID: 5}.attrs()
	if len(attrs) != 1 || attrs[0].Key != "user_id" {
		t.Fatalf("attrs = %v", attrs)
	}
}

func TestFieldsAreCopiedOnWrite(t *testing.T) {
	parent := WithRID(Background(), "a")
	child := WithReadingID(parent, "r1")
	if FieldsFrom(parent).ReadingID != "" {
		t.Fatal("child write leaked into parent")
	}
	if got := FieldsFrom(child); got.RID != "a" || got.ReadingID != "r1" {
		t.Fatalf("child fields = %+v", got)
	}
}

func TestBuildRID(t *testing.T) {
	if got := BuildRID(10, 3, 3); got != "u10-3" {
		t.Fatalf("private = %q", got)
	}
	if got := BuildRID(10, -100, 3); got != "u10--100-3" {
		t.Fatalf("group = %q", got)
	}
}

func TestSanitizeLimit(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"he\x00llo\u200b", 10, "hello"},
		{"line\nnext", 10, "line\nnext"},
		{"приветствие", 6, "привет"},
		{"x", 0, ""},
	}
	for _, c := range cases {
		if got := SanitizeLimit(c.in, c.max); got != c.want {
			t.Errorf("SanitizeLimit(%q, %d) = %q, want %q", c.in, c.max, got, c.want)
		}
	}
}

func TestParseRatio(t *testing.T) {
	if n, d, err := parseRatio(""); err != nil || n != 1 || d != 50 {
		t.Fatalf("default = %d/%d %v", n, d, err)
	}
	if n, d, err := parseRatio("0/1"); err != nil || n != 0 || d != 1 {
		t.Fatalf("off = %d/%d %v", n, d, err)
	}
	for _, bad := range []string{"abc", "3/2", "1/0"} {
		if _, _, err := parseRatio(bad); err == nil {
			t.Errorf("parseRatio(%q) accepted", bad)
		}
	}
}

func TestEveryAdmitsRatio(t *testing.T) {
	e := newEvery(1, 4)
	allowed := 0
	for i := 0; i < 12; i++ {
		if e.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed = %d, want 3", allowed)
	}
	if newEvery(0, 1).Allow() {
		t.Fatal("0/1 should never allow")
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := parseLevel("WARNING"); err != nil || lvl != slog.LevelWarn {
		t.Fatalf("warning = %v %v", lvl, err)
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Fatal("unknown level accepted")
	}
}

func TestSummarizeStrings(t *testing.T) {
	got, cut := SummarizeStrings([]string{"1_a", "2_b", "3_c"}, 2)
	if got != "1_a,2_b" || !cut {
		t.Fatalf("got %q %v", got, cut)
	}
}
