package workflow

import "regexp"

// Status 工作流状态
type Status string

const (
	StatusTranscription Status = "transcription"
	StatusReview        Status = "review"
	StatusApproval      Status = "approval"
	StatusCompleted     Status = "completed"
	StatusRejected      Status = "rejected"
)

// transitions is the outgoing edge set per state. completed is terminal.
var transitions = map[Status][]Status{
	StatusTranscription: {StatusReview, StatusRejected},
	StatusReview:        {StatusApproval, StatusRejected, StatusTranscription},
	StatusApproval:      {StatusCompleted, StatusRejected},
	StatusCompleted:     {},
	StatusRejected:      {StatusTranscription},
}

// autoNext is the path the auto-progression scheduler walks. Any state not
// listed here means the timer does nothing when it fires.
var autoNext = map[Status]Status{
	StatusTranscription: StatusReview,
	StatusReview:        StatusApproval,
	StatusApproval:      StatusCompleted,
}

// AllStatuses lists every known state, used for stats zero-filling.
var AllStatuses = []Status{
	StatusTranscription,
	StatusReview,
	StatusApproval,
	StatusCompleted,
	StatusRejected,
}

// IsValidStatus reports whether s names a known state.
func IsValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// AllowedNext returns the allowed-next-states for s.
func AllowedNext(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from → to is an edge of the transition table.
// A state is never in its own allowed set, so same-status transitions fail.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AutoNext returns the auto-progression target for s, if any.
func AutoNext(s Status) (Status, bool) {
	next, ok := autoNext[s]
	return next, ok
}

func statusStrings(states []Status) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

var (
	audioURLPattern = regexp.MustCompile(`^(https?|ftp)://.+`)
	languagePattern = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)
)

// ValidAudioURL checks the generic URI shape: http/https/ftp scheme with a
// non-empty remainder.
func ValidAudioURL(u string) bool {
	return audioURLPattern.MatchString(u)
}

// ValidLanguage checks the xx-XX language tag format.
func ValidLanguage(lang string) bool {
	return languagePattern.MatchString(lang)
}
