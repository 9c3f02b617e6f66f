// Package delivery paces a generated reading into an ordered series of chat
// messages around a single status message that is edited in place.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/tarotbot/core/logger"
	"github.com/m3rciful/tarotbot/internal/outbound"
	"github.com/m3rciful/tarotbot/internal/tarot"
)

const component = "delivery"

// Pacing holds the delays between delivery steps.
type Pacing struct {
	// Intro follows the opening line.
	Intro time.Duration
	// Dwell follows every status update before the next card.
	Dwell time.Duration
	// Verdict follows the "preparing verdict" status before the summary.
	Verdict time.Duration
}

// DefaultPacing mirrors the live bot's rhythm.
var DefaultPacing = Pacing{Intro: 2 * time.Second, Dwell: 3 * time.Second, Verdict: 4 * time.Second}

// Sequencer delivers readings over an outbound channel.
type Sequencer struct {
	ch     outbound.Channel
	pacing Pacing
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewSequencer builds a Sequencer writing to ch.
func NewSequencer(ch outbound.Channel, pacing Pacing) *Sequencer {
	return &Sequencer{ch: ch, pacing: pacing, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Deliver sends r to chatID in a fixed order: intro, status, then for each
// card a status update, a dwell and the card, then the verdict status, the
// summary block and the reader's closing note. The first failing send aborts
// the sequence.
func (s *Sequencer) Deliver(ctx context.Context, chatID int64, r tarot.Reading) error {
	start := time.Now()
	err := s.deliver(ctx, chatID, r)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Int64("chat_id", chatID),
		slog.String("tier", string(r.Tier)),
		slog.Int("cards", len(r.Cards)),
		slog.Bool("fallback", r.Fallback),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.Warn(ctx, component, "deliver", attrs...)
		return err
	}
	logger.Info(ctx, component, "deliver", attrs...)
	return nil
}

func (s *Sequencer) deliver(ctx context.Context, chatID int64, r tarot.Reading) error {
	if _, err := s.ch.Send(ctx, chatID, outbound.Message{Text: IntroText(r.Tier)}); err != nil {
		return fmt.Errorf("send intro: %w", err)
	}
	if err := s.sleep(ctx, s.pacing.Intro); err != nil {
		return err
	}

	total := len(r.Cards)
	status, err := s.ch.Send(ctx, chatID, outbound.Message{Text: ShufflingText(1, total)})
	if err != nil {
		return fmt.Errorf("send status: %w", err)
	}
	for i, card := range r.Cards {
		if i > 0 {
			if err := s.ch.Edit(ctx, status, ShufflingText(i+1, total)); err != nil {
				return fmt.Errorf("edit status before card %d: %w", i+1, err)
			}
		}
		if err := s.sleep(ctx, s.pacing.Dwell); err != nil {
			return err
		}
		if _, err := s.ch.Send(ctx, chatID, outbound.Message{Text: CardText(i+1, card), Markdown: true}); err != nil {
			return fmt.Errorf("send card %d: %w", i+1, err)
		}
	}

	if err := s.ch.Edit(ctx, status, VerdictText); err != nil {
		return fmt.Errorf("edit verdict status: %w", err)
	}
	if err := s.sleep(ctx, s.pacing.Verdict); err != nil {
		return err
	}
	if _, err := s.ch.Send(ctx, chatID, outbound.Message{Text: SummaryText(r), Markdown: true}); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}
	if r.Message == "" {
		return nil
	}
	if _, err := s.ch.Send(ctx, chatID, outbound.Message{Text: MessageText(r.Message), Markdown: true}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
