// Package gate decides whether a protected dashboard view may be shown.
//
// Decisions follow a fixed precedence: a session still loading always shows
// the loading view, then an anonymous session is redirected to login, then a
// missing permission is denied, and only then is the content shown.
package gate

import (
	"fmt"

	"github.com/wolfeidau/jobdash/internal/auth"
	"github.com/wolfeidau/jobdash/internal/models"
	"github.com/wolfeidau/jobdash/internal/session"
)

// Outcome is the view the gate selects.
type Outcome int

const (
	OutcomeLoading Outcome = iota
	OutcomeRedirect
	OutcomeDenied
	OutcomeAllow
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeDenied:
		return "denied"
	case OutcomeAllow:
		return "allow"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Decision is the result of Decide.
type Decision struct {
	Outcome Outcome
	// From is the requested location, set for OutcomeRedirect so login can
	// return the user there.
	From string
	// RequiredPermission and Role are set for OutcomeDenied.
	RequiredPermission auth.Permission
	Role               models.Role
	// User is set for OutcomeDenied and OutcomeAllow.
	User *models.User
}

// Decide picks the outcome for a request to location that needs required.
// An empty required permission only needs an authenticated session.
func Decide(state session.State, hasPermission func(auth.Permission) bool, required auth.Permission, location string) Decision {
	if state.Loading {
		return Decision{Outcome: OutcomeLoading}
	}

	if !state.IsAuthenticated {
		return Decision{Outcome: OutcomeRedirect, From: location}
	}

	if required != "" && !hasPermission(required) {
		return Decision{
			Outcome:            OutcomeDenied,
			RequiredPermission: required,
			Role:               state.Role(),
			User:               state.User,
		}
	}

	return Decision{Outcome: OutcomeAllow, User: state.User}
}
