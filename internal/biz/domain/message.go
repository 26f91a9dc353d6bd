package domain

import "time"

// Message represents a chat line delivered by the host
type Message struct {
	ID         string
	ChatID     string
	Content    string
	SenderID   string
	SenderName string
	CreateTime time.Time
	IsAdmin    bool // Server notice rather than user chat
	IsBot      bool // Sent by our own relay bot
}

// Classification is the visibility verdict for a message
type Classification struct {
	Visible        bool     `json:"visible"`
	MatchedFilters []string `json:"matched_filters"`
}

// Decision tells the presentation layer what to show for a message
type Decision struct {
	Visible        bool     `json:"visible"`
	MatchedFilters []string `json:"matched_filters"`
	Text           string   `json:"text"`
	Admin          bool     `json:"admin,omitempty"`
}

// Equal reports whether two decisions would render the same way
func (d Decision) Equal(o Decision) bool {
	if d.Visible != o.Visible || d.Text != o.Text || d.Admin != o.Admin {
		return false
	}
	if len(d.MatchedFilters) != len(o.MatchedFilters) {
		return false
	}
	for i := range d.MatchedFilters {
		if d.MatchedFilters[i] != o.MatchedFilters[i] {
			return false
		}
	}
	return true
}
