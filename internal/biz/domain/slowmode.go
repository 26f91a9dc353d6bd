package domain

import "time"

// BlockReason explains why sending is currently blocked
type BlockReason string

const (
	ReasonNone     BlockReason = "none"
	ReasonBanned   BlockReason = "banned"
	ReasonRepeated BlockReason = "repeated"
	ReasonSlowmode BlockReason = "slowmode"
)

// SlowmodeStatus is the send eligibility shown next to the input box
type SlowmodeStatus struct {
	Blocked    bool        `json:"blocked"`
	Reason     BlockReason `json:"reason"`
	WaitMillis int64       `json:"wait_millis"`
}

// WaitSeconds rounds the remaining wait up for countdown labels
func (s SlowmodeStatus) WaitSeconds() int64 {
	if s.WaitMillis <= 0 {
		return 0
	}
	return (s.WaitMillis + 999) / 1000
}

// SentMessage records a local send attempt
type SentMessage struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// SlowmodeState is the inferred send-rate state
type SlowmodeState struct {
	RateLimit       time.Duration `json:"rate_limit"`
	RepeatLimit     time.Duration `json:"repeat_limit"`
	LastMessage     *SentMessage  `json:"last_message,omitempty"`
	PreviousMessage *SentMessage  `json:"previous_message,omitempty"`
	BannedUntil     time.Time     `json:"banned_until"`
}

// NoticeKind classifies an admin notice
type NoticeKind string

const (
	NoticeUnknown  NoticeKind = "unknown"
	NoticeSlowmode NoticeKind = "slowmode"
	NoticeSlowOff  NoticeKind = "slowmode_off"
	NoticeRepeated NoticeKind = "repeated"
	NoticeTooFast  NoticeKind = "too_fast"
	NoticeBanned   NoticeKind = "banned"
)

// NoticeOutcome is the result of feeding an admin notice to the tracker
type NoticeOutcome struct {
	Kind    NoticeKind     `json:"kind"`
	Display string         `json:"display"`
	Hidden  bool           `json:"hidden"`  // Redundant notice, do not show
	Changed bool           `json:"changed"` // State was mutated
	Status  SlowmodeStatus `json:"status"`
}
