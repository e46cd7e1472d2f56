package console

import "time"

// NoticeKind distinguishes success toasts from errors and blocking alerts.
type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	NoticeSuccess
	NoticeError
	NoticeBlocking
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeSuccess:
		return "success"
	case NoticeError:
		return "error"
	case NoticeBlocking:
		return "blocking"
	default:
		return "none"
	}
}

// Notice is a user-facing message. A zero Expires keeps it until dismissed.
type Notice struct {
	Kind    NoticeKind
	Text    string
	Expires time.Time
}

// Visible reports whether the notice should still be shown at now.
func (n Notice) Visible(now time.Time) bool {
	if n.Text == "" {
		return false
	}
	return n.Expires.IsZero() || now.Before(n.Expires)
}

func (n Notice) at(now time.Time) Notice {
	if n.Visible(now) {
		return n
	}
	return Notice{}
}

func errorNotice(text string) Notice {
	return Notice{Kind: NoticeError, Text: text}
}

func blockingNotice(text string) Notice {
	return Notice{Kind: NoticeBlocking, Text: text}
}

func successNotice(text string, now time.Time, ttl time.Duration) Notice {
	return Notice{Kind: NoticeSuccess, Text: text, Expires: now.Add(ttl)}
}
