package clearance

import "fmt"

// Kind classifies why a session failed. Every kind is terminal for the
// session it happened in.
type Kind int

const (
	SessionLaunchFailed Kind = iota + 1
	NavigationFailed
	ElementWaitTimedOut
	CookieReadFailed
	VersionReadFailed
	InterceptionSetupFailed
)

func (k Kind) String() string {
	switch k {
	case SessionLaunchFailed:
		return "session launch failed"
	case NavigationFailed:
		return "navigation failed"
	case ElementWaitTimedOut:
		return "element wait timed out"
	case CookieReadFailed:
		return "cookie read failed"
	case VersionReadFailed:
		return "version read failed"
	case InterceptionSetupFailed:
		return "interception setup failed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is.
var (
	ErrSessionLaunchFailed     = &SessionError{Kind: SessionLaunchFailed}
	ErrNavigationFailed        = &SessionError{Kind: NavigationFailed}
	ErrElementWaitTimedOut     = &SessionError{Kind: ElementWaitTimedOut}
	ErrCookieReadFailed        = &SessionError{Kind: CookieReadFailed}
	ErrVersionReadFailed       = &SessionError{Kind: VersionReadFailed}
	ErrInterceptionSetupFailed = &SessionError{Kind: InterceptionSetupFailed}
)

type SessionError struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *SessionError) Error() string {
	msg := e.Kind.String()
	if e.URL != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.URL)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SessionError) Unwrap() error { return e.Err }

// Is reports whether target is a SessionError of the same kind.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, url string, err error) *SessionError {
	return &SessionError{Kind: kind, URL: url, Err: err}
}
