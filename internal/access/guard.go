// Package access holds the pure routing decisions made on top of a session:
// the route guard, the public only guard, the role landing pages and the
// role permission table.
package access

import (
	"slices"

	"yello-auth/internal/model"
)

type Outcome string

const (
	OutcomeAllow    Outcome = "allow"
	OutcomeRedirect Outcome = "redirect"
	// OutcomePending means the session is still being confirmed and no
	// redirect may be issued yet.
	OutcomePending Outcome = "pending"
)

// View is the part of the session state the guards look at.
type View struct {
	Authenticated bool
	Loading       bool
	User          *model.User
}

type Requirement struct {
	RequireAuth  bool
	Roles        []model.Role
	FallbackPath string
}

type Decision struct {
	Outcome      Outcome `json:"outcome"`
	Redirect     string  `json:"redirect,omitempty"`
	From         string  `json:"from,omitempty"`
	Unauthorized bool    `json:"unauthorized,omitempty"`
	Error        string  `json:"error,omitempty"`
}

func Allow() Decision {
	return Decision{Outcome: OutcomeAllow}
}

func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// Authorize decides whether the session may render path.
func Authorize(view View, path string, req Requirement) Decision {
	if !req.RequireAuth {
		return Allow()
	}

	if view.Loading {
		return Decision{Outcome: OutcomePending}
	}

	if !view.Authenticated || view.User == nil {
		target := req.FallbackPath
		if target == "" {
			target = PathLogin
		}
		return Decision{Outcome: OutcomeRedirect, Redirect: target, From: path}
	}

	if len(req.Roles) > 0 && !slices.Contains(req.Roles, view.User.Role) {
		return Decision{
			Outcome:      OutcomeRedirect,
			Redirect:     PathDashboard,
			From:         path,
			Unauthorized: true,
			Error:        model.Message(model.DefaultLocale, "", model.KindForbidden),
		}
	}

	return Allow()
}

// PublicOnly guards pages such as login and register that a signed in user
// should not see again.
func PublicOnly(view View, from string, redirectTo string) Decision {
	if !view.Authenticated {
		return Allow()
	}

	target := from
	if target == "" {
		target = redirectTo
	}
	if target == "" {
		target = PathDashboard
	}
	return Decision{Outcome: OutcomeRedirect, Redirect: target}
}
