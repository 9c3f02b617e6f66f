package reading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/tarotbot/internal/tarot"
)

type fakeLLM struct {
	out   string
	err   error
	block bool
	user  string

	note     string
	noteErr  error
	notesAsk int
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string) (string, error) {
	if system == tarot.MessageSystemPrompt {
		f.notesAsk++
		return f.note, f.noteErr
	}
	f.user = user
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.out, f.err
}

func cardsJSON(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{"name":"Card %d","description":"desc","interpretation":"drink"}`, i+1)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestGenerateStandardSuccess(t *testing.T) {
	llm := &fakeLLM{out: "Here you go:\n" + `{"cards":` + cardsJSON(3) + `,"summary":"sum","recommended_drink":"mojito"}` + "\nenjoy"}
	r := NewGenerator(llm).Generate(context.Background(), tarot.Request{Tier: tarot.TierStandard})
	if r.Fallback {
		t.Fatal("unexpected fallback")
	}
	if len(r.Cards) != 3 || r.Summary != "sum" || r.Recommendation != "mojito" {
		t.Fatalf("unexpected reading %+v", r)
	}
}

func TestGeneratePremiumSuccess(t *testing.T) {
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	llm := &fakeLLM{out: `{"cards":` + cardsJSON(5) + `,"personal_summary":"you","astrological_comment":"stars","recommended_drink":"negroni"}`}
	g := NewGenerator(llm, WithClock(func() time.Time { return now }))
	r := g.Generate(context.Background(), tarot.Request{Tier: tarot.TierPremium, Birthdate: "15.05.1990"})
	if r.Fallback || len(r.Cards) != 5 || r.Commentary != "stars" || r.Summary != "you" {
		t.Fatalf("unexpected reading %+v", r)
	}
	if !strings.Contains(llm.user, "15.05.1990") || !strings.Contains(llm.user, "02.01.2026") {
		t.Fatalf("prompt misses dates: %s", llm.user)
	}
}

func TestGenerateFallbacks(t *testing.T) {
	cases := map[string]*fakeLLM{
		"transport":   {err: errors.New("down")},
		"no json":     {out: "the spirits are silent"},
		"bad json":    {out: `{"cards": [}`},
		"wrong count": {out: `{"cards":` + cardsJSON(2) + `,"summary":"s","recommended_drink":"d"}`},
		"empty field": {out: `{"cards":` + cardsJSON(3) + `,"summary":"","recommended_drink":"d"}`},
	}
	for name, llm := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewGenerator(llm).Generate(context.Background(), tarot.Request{Tier: tarot.TierStandard})
			if !r.Fallback || len(r.Cards) != 3 {
				t.Fatalf("expected standard fallback, got %+v", r)
			}
		})
	}
}

func TestGeneratePremiumRejectsStandardShape(t *testing.T) {
	llm := &fakeLLM{out: `{"cards":` + cardsJSON(5) + `,"summary":"s","recommended_drink":"d"}`}
	r := NewGenerator(llm).Generate(context.Background(), tarot.Request{Tier: tarot.TierPremium, Birthdate: "01.01.2000"})
	if !r.Fallback || len(r.Cards) != 5 {
		t.Fatalf("expected premium fallback, got %+v", r)
	}
}

func TestGenerateTimeout(t *testing.T) {
	g := NewGenerator(&fakeLLM{block: true}, WithTimeout(20*time.Millisecond))
	r := g.Generate(context.Background(), tarot.Request{Tier: tarot.TierStandard})
	if !r.Fallback {
		t.Fatal("expected fallback on timeout")
	}
}

func TestGenerateWithoutModel(t *testing.T) {
	r := NewGenerator(nil).Generate(context.Background(), tarot.Request{Tier: tarot.TierPremium})
	if !r.Fallback || len(r.Cards) != 5 {
		t.Fatalf("expected premium fallback, got %+v", r)
	}
}

func TestParseLegacyInterpretationKey(t *testing.T) {
	raw := `{"cards":[{"name":"A","description":"d","drunk_interpretation":"x"},{"name":"B","description":"d","drunk_interpretation":"x"},{"name":"C","description":"d","drunk_interpretation":"x"}],"summary":"s","recommended_drink":"r"}`
	r, err := Parse(tarot.TierStandard, raw)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if r.Cards[2].Interpretation != "x" {
		t.Fatalf("legacy key not mapped: %+v", r.Cards[2])
	}
}

func TestGenerateClosingNote(t *testing.T) {
	llm := &fakeLLM{
		out:  `{"cards":` + cardsJSON(3) + `,"summary":"sum","recommended_drink":"mojito"}`,
		note: "  Sip slowly, the stars are watching.  ",
	}
	r := NewGenerator(llm).Generate(context.Background(), tarot.Request{Tier: tarot.TierStandard})
	if r.Message != "Sip slowly, the stars are watching." || llm.notesAsk != 1 {
		t.Fatalf("message = %q, asked %d times", r.Message, llm.notesAsk)
	}
}

func TestGenerateClosingNoteFallback(t *testing.T) {
	cases := map[string]*fakeLLM{
		"error": {out: `{"cards":` + cardsJSON(3) + `,"summary":"s","recommended_drink":"d"}`, noteErr: errors.New("down")},
		"blank": {out: `{"cards":` + cardsJSON(3) + `,"summary":"s","recommended_drink":"d"}`, note: " \n"},
	}
	for name, llm := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewGenerator(llm).Generate(context.Background(), tarot.Request{Tier: tarot.TierStandard})
			if r.Fallback || r.Message != tarot.FallbackMessage {
				t.Fatalf("unexpected reading %+v", r)
			}
		})
	}
}

func TestGenerateNoteSurvivesReadingFallback(t *testing.T) {
	llm := &fakeLLM{err: errors.New("down"), note: "Cheers anyway."}
	r := NewGenerator(llm).Generate(context.Background(), tarot.Request{Tier: tarot.TierPremium})
	if !r.Fallback || r.Message != "Cheers anyway." {
		t.Fatalf("unexpected reading %+v", r)
	}
	if r := NewGenerator(nil).Generate(context.Background(), tarot.Request{Tier: tarot.TierStandard}); r.Message != tarot.FallbackMessage {
		t.Fatalf("message without model = %q", r.Message)
	}
}
