package guard

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrRetriesExhausted wraps the last transient failure once every attempt failed.
	ErrRetriesExhausted = errors.New("guard: retries exhausted")
	// ErrInvalidInstrument marks a per-instrument rejection (delisted, delivering, unknown symbol).
	ErrInvalidInstrument = errors.New("guard: instrument no longer valid")
)

const (
	rateLimitCode      = "-1003"
	bannedMarker       = "banned"
	deliveringCode     = "-4108"
	invalidSymbolCode  = "-1121"
	deliveringMarker   = "delivering"
	invalidMarker      = "invalid"
	millisecondsCutoff = 1_000_000_000_000
)

var bannedUntilPattern = regexp.MustCompile(`(?i)banned until (\d{10,13})`)

// ResponseError is implemented by transport errors that carry the provider's
// HTTP status and raw body.
type ResponseError interface {
	error
	StatusCode() int
	Body() string
}

// BanError signals a provider rate-limit ban. Callers must stop issuing
// requests until Until.
type BanError struct {
	Until time.Time
	// Cached is set when the call was refused locally without reaching the provider.
	Cached bool
	Cause  error
}

func (e *BanError) Error() string {
	if e.Cached {
		return fmt.Sprintf("rate-limit ban active until %s", e.Until.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("rate-limit ban detected, banned until %s: %v", e.Until.UTC().Format(time.RFC3339), e.Cause)
}

func (e *BanError) Unwrap() error { return e.Cause }

// IsBan reports whether err carries a ban signal.
func IsBan(err error) bool {
	var ban *BanError
	return errors.As(err, &ban)
}

// IsInvalidInstrument reports whether err asks for the instrument to be dropped.
func IsInvalidInstrument(err error) bool {
	return errors.Is(err, ErrInvalidInstrument)
}

type kind int

const (
	kindTransient kind = iota
	kindBan
	kindInvalid
)

func classify(err error) (kind, ResponseError) {
	if errors.Is(err, ErrInvalidInstrument) {
		return kindInvalid, nil
	}

	var resp ResponseError
	if errors.As(err, &resp) {
		status := resp.StatusCode()
		body := resp.Body()
		if status == http.StatusTeapot || status == http.StatusTooManyRequests {
			return kindBan, resp
		}
		if strings.Contains(body, rateLimitCode) && strings.Contains(strings.ToLower(body), bannedMarker) {
			return kindBan, resp
		}
		if isInvalidInstrumentBody(body) {
			return kindInvalid, resp
		}
		return kindTransient, resp
	}
	return kindTransient, nil
}

func isInvalidInstrumentBody(body string) bool {
	lower := strings.ToLower(body)
	if strings.Contains(body, deliveringCode) {
		return strings.Contains(lower, deliveringMarker) || strings.Contains(lower, invalidMarker)
	}
	return strings.Contains(body, invalidSymbolCode) && strings.Contains(lower, invalidMarker)
}

// parseBannedUntil extracts the ban expiry embedded in a provider error body.
// The provider reports epoch milliseconds; plain seconds are accepted too.
func parseBannedUntil(body string) (time.Time, bool) {
	match := bannedUntilPattern.FindStringSubmatch(body)
	if len(match) != 2 {
		return time.Time{}, false
	}
	epoch, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || epoch <= 0 {
		return time.Time{}, false
	}
	if epoch >= millisecondsCutoff {
		return time.UnixMilli(epoch).UTC(), true
	}
	return time.Unix(epoch, 0).UTC(), true
}
