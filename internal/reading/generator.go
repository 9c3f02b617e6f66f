// Package reading turns a reading request into a validated tarot.Reading,
// substituting the static fallback whenever generation fails.
package reading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/tarotbot/core/logger"
	"github.com/m3rciful/tarotbot/internal/tarot"
)

const component = "reading"

// Completer produces raw model output for a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Generator draws readings through a Completer.
type Generator struct {
	llm     Completer
	timeout time.Duration
	now     func() time.Time
}

// Option customises a Generator.
type Option func(*Generator)

// WithTimeout bounds each generation request.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithClock overrides the clock used for premium prompts.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGenerator builds a Generator. llm may be nil, in which case every
// request is served by the fallback reading.
func NewGenerator(llm Completer, opts ...Option) *Generator {
	g := &Generator{llm: llm, timeout: 60 * time.Second, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate never fails: any error yields the tier's fallback reading. The
// closing note is requested separately and falls back on its own.
func (g *Generator) Generate(ctx context.Context, req tarot.Request) tarot.Reading {
	start := time.Now()
	r, err := g.generate(ctx, req)
	if err != nil {
		logger.Warn(ctx, component, "generate",
			slog.String("tier", string(req.Tier)),
			slog.String("outcome", "fallback"),
			slog.String("reason", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		r = tarot.Fallback(req.Tier)
	} else {
		logger.Info(ctx, component, "generate",
			slog.String("tier", string(req.Tier)),
			slog.String("outcome", "ok"),
			slog.Int("cards", len(r.Cards)),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	r.Message = g.message(ctx)
	return r
}

// message asks for the reader's closing note.
func (g *Generator) message(ctx context.Context) string {
	if g.llm == nil {
		return tarot.FallbackMessage
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.llm.Complete(ctx, tarot.MessageSystemPrompt, tarot.MessagePrompt)
	msg := strings.TrimSpace(raw)
	if err == nil && msg == "" {
		err = errors.New("empty message")
	}
	if err != nil {
		logger.Warn(ctx, component, "message",
			slog.String("outcome", "fallback"),
			slog.String("reason", err.Error()),
		)
		return tarot.FallbackMessage
	}
	return msg
}

func (g *Generator) generate(ctx context.Context, req tarot.Request) (tarot.Reading, error) {
	if !req.Tier.Valid() {
		return tarot.Reading{}, fmt.Errorf("unknown tier %q", req.Tier)
	}
	if g.llm == nil {
		return tarot.Reading{}, errors.New("no language model configured")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.llm.Complete(ctx, tarot.SystemPrompt, tarot.Prompt(req, g.now()))
	if err != nil {
		return tarot.Reading{}, err
	}
	return Parse(req.Tier, raw)
}

type rawCard struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Interpretation string `json:"interpretation"`
	// Older prompts used a longer key for the same field.
	DrunkInterpretation string `json:"drunk_interpretation"`
}

type rawReading struct {
	Cards               []rawCard `json:"cards"`
	Summary             string    `json:"summary"`
	PersonalSummary     string    `json:"personal_summary"`
	AstrologicalComment string    `json:"astrological_comment"`
	RecommendedDrink    string    `json:"recommended_drink"`
}

// Parse extracts the JSON object from model output and validates it for tier.
// Text around the outermost braces is ignored.
func Parse(tier tarot.Tier, raw string) (tarot.Reading, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return tarot.Reading{}, errors.New("no JSON object in model output")
	}
	var rr rawReading
	if err := json.Unmarshal([]byte(raw[start:end+1]), &rr); err != nil {
		return tarot.Reading{}, fmt.Errorf("decode model output: %w", err)
	}

	out := tarot.Reading{
		Tier:           tier,
		Cards:          make([]tarot.Card, 0, len(rr.Cards)),
		Recommendation: strings.TrimSpace(rr.RecommendedDrink),
	}
	for _, c := range rr.Cards {
		interp := c.Interpretation
		if strings.TrimSpace(interp) == "" {
			interp = c.DrunkInterpretation
		}
		out.Cards = append(out.Cards, tarot.Card{
			Name:           strings.TrimSpace(c.Name),
			Description:    strings.TrimSpace(c.Description),
			Interpretation: strings.TrimSpace(interp),
		})
	}
	if tier == tarot.TierPremium {
		out.Summary = strings.TrimSpace(rr.PersonalSummary)
		out.Commentary = strings.TrimSpace(rr.AstrologicalComment)
	} else {
		out.Summary = strings.TrimSpace(rr.Summary)
	}
	if err := out.Validate(); err != nil {
		return tarot.Reading{}, err
	}
	return out, nil
}
