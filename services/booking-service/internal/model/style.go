package model

// DisplayStyle is how the dashboard renders a status badge.
type DisplayStyle struct {
	Label string `json:"label"`
	Tone  string `json:"tone"`
}

// StyleFor is total over Status; an unrecognised value renders as neutral.
func StyleFor(s Status) DisplayStyle {
	switch s {
	case StatusPending:
		return DisplayStyle{Label: "Pending", Tone: "warning"}
	case StatusConfirmed:
		return DisplayStyle{Label: "Confirmed", Tone: "success"}
	case StatusCompleted:
		return DisplayStyle{Label: "Completed", Tone: "info"}
	case StatusCancelled:
		return DisplayStyle{Label: "Cancelled", Tone: "danger"}
	case StatusNoShow:
		return DisplayStyle{Label: "No show", Tone: "muted"}
	default:
		return DisplayStyle{Label: string(s), Tone: "neutral"}
	}
}
