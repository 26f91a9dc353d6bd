package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
)

// Slowmode defaults
const (
	DefaultRateLimit   = 2 * time.Second
	DefaultRepeatLimit = 30 * time.Second
	DefaultSendGrace   = 1 * time.Second
)

// Replacement texts for rejected-send notices
const (
	RepeatRejectedNotice = "Your last message could not be sent. Please try again shortly."
	RateRejectedNotice   = "Your last message could not be sent due to the current slow mode time limit. Button timer is now updated with correct time limit."
)

var (
	tooFastPattern  = regexp.MustCompile(`(?i)sending messages too quickly|slow mode and you are sending`)
	repeatPattern   = regexp.MustCompile(`(?i)identical to the previous`)
	bannedPattern   = regexp.MustCompile(`(?i)you are banned`)
	slowOffPattern  = regexp.MustCompile(`(?i)no longer in slow mode`)
	slowmodePattern = regexp.MustCompile(`(?i)now in slow mode`)
	secondsPattern  = regexp.MustCompile(`(?i)(\d+)\s*(?:more\s+)?seconds?\b`)
)

// SlowmodeConfig contains slowmode tracker configuration
type SlowmodeConfig struct {
	RateLimit   time.Duration // Initial minimum interval between messages
	RepeatLimit time.Duration // Initial interval before repeating a message
	Grace       time.Duration // Window after a send before a reason is shown
}

// DefaultSlowmodeConfig returns default slowmode configuration
func DefaultSlowmodeConfig() SlowmodeConfig {
	return SlowmodeConfig{
		RateLimit:   DefaultRateLimit,
		RepeatLimit: DefaultRepeatLimit,
		Grace:       DefaultSendGrace,
	}
}

// SlowmodeTracker infers send eligibility from local sends and admin notices
type SlowmodeTracker struct {
	mu     sync.Mutex
	now    func() time.Time
	config SlowmodeConfig
	state  domain.SlowmodeState
}

// NewSlowmodeTracker creates a tracker; a nil clock uses time.Now
func NewSlowmodeTracker(config SlowmodeConfig, now func() time.Time) *SlowmodeTracker {
	if now == nil {
		now = time.Now
	}
	return &SlowmodeTracker{
		now:    now,
		config: config,
		state: domain.SlowmodeState{
			RateLimit:   config.RateLimit,
			RepeatLimit: config.RepeatLimit,
		},
	}
}

// SendAttempted records a local send, keeping the prior one for rollback
func (t *SlowmodeTracker) SendAttempted(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.PreviousMessage = t.state.LastMessage
	t.state.LastMessage = &domain.SentMessage{Text: text, At: t.now()}
}

// Feed parses an admin notice. Unrecognized or number-less notices pass through untouched.
func (t *SlowmodeTracker) Feed(text string) domain.NoticeOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	out := domain.NoticeOutcome{Kind: domain.NoticeUnknown, Display: text}

	switch {
	case tooFastPattern.MatchString(text):
		out.Kind = domain.NoticeTooFast
		wait, ok := parseSeconds(text)
		if !ok {
			break
		}
		if prev := t.state.PreviousMessage; prev != nil {
			t.state.RateLimit = now.Sub(prev.At) + wait
		} else if wait > t.state.RateLimit {
			t.state.RateLimit = wait
		}
		t.rollback()
		out.Display = RateRejectedNotice
		out.Changed = true

	case repeatPattern.MatchString(text):
		out.Kind = domain.NoticeRepeated
		wait, ok := parseSeconds(text)
		if !ok {
			break
		}
		t.state.RepeatLimit = wait
		t.rollback()
		out.Display = RepeatRejectedNotice
		out.Changed = true

	case bannedPattern.MatchString(text):
		out.Kind = domain.NoticeBanned
		wait, ok := parseSeconds(text)
		if !ok {
			break
		}
		t.state.BannedUntil = now.Add(wait)
		t.rollback()
		out.Changed = true

	case slowOffPattern.MatchString(text):
		out.Kind = domain.NoticeSlowOff
		if t.state.RateLimit == t.config.RateLimit {
			out.Hidden = true
			break
		}
		t.state.RateLimit = t.config.RateLimit
		out.Changed = true

	case slowmodePattern.MatchString(text):
		out.Kind = domain.NoticeSlowmode
		wait, ok := parseSeconds(text)
		if !ok {
			break
		}
		if wait == t.state.RateLimit {
			out.Hidden = true
			break
		}
		t.state.RateLimit = wait
		out.Changed = true
	}

	if out.Hidden {
		out.Display = ""
	}
	if out.Changed {
		fmt.Printf("[Slowmode] %s notice: rate=%s repeat=%s\n", out.Kind, t.state.RateLimit, t.state.RepeatLimit)
	}
	out.Status = t.status("", now)
	return out
}

// Status returns the current send eligibility for a draft
func (t *SlowmodeTracker) Status(draft string) domain.SlowmodeStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status(draft, t.now())
}

// State returns a copy of the inferred state
func (t *SlowmodeTracker) State() domain.SlowmodeState {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state
	if st.LastMessage != nil {
		m := *st.LastMessage
		st.LastMessage = &m
	}
	if st.PreviousMessage != nil {
		m := *st.PreviousMessage
		st.PreviousMessage = &m
	}
	return st
}

func (t *SlowmodeTracker) status(draft string, now time.Time) domain.SlowmodeStatus {
	if now.Before(t.state.BannedUntil) {
		return blocked(domain.ReasonBanned, t.state.BannedUntil.Sub(now))
	}

	last := t.state.LastMessage
	if last == nil {
		return domain.SlowmodeStatus{Reason: domain.ReasonNone}
	}
	elapsed := now.Sub(last.At)

	var st domain.SlowmodeStatus
	switch {
	case draft != "" && strings.TrimSpace(draft) == strings.TrimSpace(last.Text) && elapsed < t.state.RepeatLimit:
		st = blocked(domain.ReasonRepeated, t.state.RepeatLimit-elapsed)
	case elapsed < t.state.RateLimit:
		st = blocked(domain.ReasonSlowmode, t.state.RateLimit-elapsed)
	default:
		return domain.SlowmodeStatus{Reason: domain.ReasonNone}
	}

	// The server has not answered yet
	if elapsed < t.config.Grace {
		st.Reason = domain.ReasonNone
	}
	return st
}

// rollback undoes the last send after the server rejected it
func (t *SlowmodeTracker) rollback() {
	t.state.LastMessage = t.state.PreviousMessage
}

func blocked(reason domain.BlockReason, wait time.Duration) domain.SlowmodeStatus {
	return domain.SlowmodeStatus{Blocked: true, Reason: reason, WaitMillis: wait.Milliseconds()}
}

func parseSeconds(text string) (time.Duration, bool) {
	m := secondsPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
