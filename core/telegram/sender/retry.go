package sender

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Class groups Bot API failures by what a retry would risk.
type Class int

const (
	// Permanent failures are returned as is: bad request, blocked bot, cancelled ctx.
	Permanent Class = iota
	// NotSent means the request never reached Telegram.
	NotSent
	// Flood means Telegram refused the request and asked to wait.
	Flood
	// Uncertain means the request may have been applied: response timeouts and 5xx.
	Uncertain
)

func (c Class) String() string {
	switch c {
	case NotSent:
		return "not_sent"
	case Flood:
		return "flood"
	case Uncertain:
		return "uncertain"
	}
	return "permanent"
}

// Retry reports whether a call failing with this class may run again.
func (c Class) Retry(idempotent bool) bool {
	switch c {
	case NotSent, Flood:
		return true
	case Uncertain:
		return idempotent
	}
	return false
}

// Classify inspects err as returned by telebot over net/http.
func Classify(err error) Class {
	if err == nil || errors.Is(err, context.Canceled) {
		return Permanent
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return Flood
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NotSent
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return NotSent
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Uncertain
	}
	if opErr != nil || errors.Is(err, context.DeadlineExceeded) {
		return Uncertain
	}

	if code := statusCode(err); code >= 500 {
		return Uncertain
	}
	return Permanent
}

// RetryAfter returns the wait Telegram asked for, if err is a flood error.
func RetryAfter(err error) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return 0
}

// statusCode extracts the API error code. Errors telebot does not map are
// formatted as "telegram: <description> (<code>)".
func statusCode(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	msg := err.Error()
	open, end := strings.LastIndex(msg, "("), strings.LastIndex(msg, ")")
	if open < 0 || end <= open+1 {
		return 0
	}
	code, convErr := strconv.Atoi(msg[open+1 : end])
	if convErr != nil {
		return 0
	}
	return code
}

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// RedactToken masks bot tokens embedded in API URLs.
func RedactToken(msg string) string {
	return tokenRe.ReplaceAllString(msg, "bot<redacted>")
}
