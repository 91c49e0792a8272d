package policy

import (
	"errors"

	"estate-dashboard/internal/model"
)

var (
	ErrNoSession = errors.New("no session")
	ErrForbidden = errors.New("forbidden")
)

type Verdict string

const (
	Allow    Verdict = "allow"
	Redirect Verdict = "redirect"
	NotFound Verdict = "not_found"
)

type Decision struct {
	Verdict  Verdict `json:"verdict"`
	Location string  `json:"location,omitempty"`
}

func redirect(to string) Decision {
	return Decision{Verdict: Redirect, Location: to}
}

// Check decides whether the session may open the page at path.
// Missing token or role goes to sign-in, a role outside the allow-list goes
// to that role's default route.
func (t *Table) Check(s *model.Session, path string) Decision {
	signedIn := s != nil && s.Token != "" && s.Role != ""

	if t.IsPublic(path) {
		if signedIn {
			if rp, ok := t.Roles[s.Role]; ok {
				if to, ok := rp.Landing[path]; ok {
					return redirect(to)
				}
			}
		}
		return Decision{Verdict: Allow}
	}
	if !t.Known(path) {
		return Decision{Verdict: NotFound}
	}
	if !signedIn {
		return redirect(t.SignIn)
	}

	rp, ok := t.Roles[s.Role]
	if !ok {
		return redirect(t.Home)
	}
	if to, ok := rp.Landing[path]; ok {
		return redirect(to)
	}
	if rp.allows(path) {
		return Decision{Verdict: Allow}
	}
	return redirect(rp.Default)
}

// Permit is Check for API scopes.
func (t *Table) Permit(s *model.Session, scope string) error {
	if s == nil || s.Token == "" || s.Role == "" {
		return ErrNoSession
	}
	if !t.Permits(s.Role, scope) {
		return ErrForbidden
	}
	return nil
}

// HomeFor is where a role lands after sign-in or a denied request.
func (t *Table) HomeFor(role model.Role) string {
	if rp, ok := t.Roles[role]; ok {
		return rp.Default
	}
	return t.Home
}
