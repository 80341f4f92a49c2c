package access

import "yello-auth/internal/model"

var landingPaths = map[model.Role]string{
	model.RoleTeacher: PathTeacherDashboard,
	model.RoleStudent: PathStudentDashboard,
	model.RoleParent:  PathParentDashboard,
	model.RoleAdmin:   PathAdminDashboard,
}

func LandingPath(role model.Role) string {
	if path, ok := landingPaths[role]; ok {
		return path
	}
	return PathDashboard
}

// ResolveLanding is the role based redirect entry point used once the
// session is known and whenever the generic dashboard is requested.
func ResolveLanding(view View) Decision {
	if view.Loading {
		return Decision{Outcome: OutcomePending}
	}
	if view.Authenticated && view.User != nil {
		return Decision{Outcome: OutcomeRedirect, Redirect: LandingPath(view.User.Role)}
	}
	return Decision{Outcome: OutcomeRedirect, Redirect: PathLogin}
}
