package access

import (
	"sort"
	"strings"

	"yello-auth/internal/model"
)

const (
	PathHome     = "/"
	PathAbout    = "/about"
	PathContact  = "/contact"
	PathProfile  = "/profile"
	PathSettings = "/settings"

	PathLogin     = "/login"
	PathRegister  = "/register"
	PathLogout    = "/logout"
	PathDashboard = "/dashboard"

	PathTeacherDashboard    = "/teacher/dashboard"
	PathTeacherCourses      = "/teacher/courses"
	PathTeacherImportPDF    = "/teacher/import-pdf"
	PathTeacherCourseEditor = "/teacher/course-editor"
	PathTeacherQuiz         = "/teacher/quiz"
	PathTeacherAnalytics    = "/teacher/analytics"

	PathStudentDashboard = "/student/dashboard"
	PathStudentCourses   = "/student/courses"
	PathStudentProgress  = "/student/progress"

	PathParentDashboard = "/parent/dashboard"
	PathParentChildren  = "/parent/children"
	PathParentReports   = "/parent/reports"

	PathAdminDashboard = "/admin/dashboard"
	PathAdminUsers     = "/admin/users"
	PathAdminSchools   = "/admin/schools"

	PathClasses  = "/classes"
	PathStudents = "/students"
	PathReports  = "/reports"
)

type RouteKind int

const (
	RoutePublic RouteKind = iota
	RoutePublicOnly
	RouteProtected
)

// Rule gates every path equal to Prefix or below it.
type Rule struct {
	Prefix string
	Kind   RouteKind
	Roles  []model.Role
}

type Routes struct {
	rules []Rule
}

// NewRoutes orders the rules so the most specific prefix is matched first.
func NewRoutes(rules []Rule) *Routes {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &Routes{rules: sorted}
}

func DefaultRoutes() *Routes {
	return NewRoutes([]Rule{
		{Prefix: PathHome, Kind: RoutePublic},
		{Prefix: PathAbout, Kind: RoutePublic},
		{Prefix: PathContact, Kind: RoutePublic},
		{Prefix: PathLogin, Kind: RoutePublicOnly},
		{Prefix: PathRegister, Kind: RoutePublicOnly},
		{Prefix: PathDashboard, Kind: RouteProtected},
		{Prefix: PathProfile, Kind: RouteProtected},
		{Prefix: PathSettings, Kind: RouteProtected},
		{Prefix: PathLogout, Kind: RouteProtected},
		{Prefix: "/teacher", Kind: RouteProtected, Roles: []model.Role{model.RoleTeacher, model.RoleAdmin}},
		{Prefix: "/student", Kind: RouteProtected, Roles: []model.Role{model.RoleStudent}},
		{Prefix: "/parent", Kind: RouteProtected, Roles: []model.Role{model.RoleParent}},
		{Prefix: "/admin", Kind: RouteProtected, Roles: []model.Role{model.RoleAdmin}},
		{Prefix: PathClasses, Kind: RouteProtected, Roles: []model.Role{model.RoleTeacher, model.RoleAdmin}},
		{Prefix: PathStudents, Kind: RouteProtected, Roles: []model.Role{model.RoleTeacher, model.RoleAdmin}},
		{Prefix: PathReports, Kind: RouteProtected},
	})
}

// Match returns the rule for path. Unknown paths are protected without a
// role restriction.
func (r *Routes) Match(path string) Rule {
	path = cleanPath(path)
	for _, rule := range r.rules {
		if rule.Prefix == PathHome {
			if path == PathHome {
				return rule
			}
			continue
		}
		if path == rule.Prefix || strings.HasPrefix(path, rule.Prefix+"/") {
			return rule
		}
	}
	return Rule{Prefix: path, Kind: RouteProtected}
}

// Decide applies the matching rule to the current session.
func (r *Routes) Decide(view View, path string) Decision {
	rule := r.Match(path)
	switch rule.Kind {
	case RoutePublic:
		return Allow()
	case RoutePublicOnly:
		return PublicOnly(view, "", "")
	default:
		return Authorize(view, cleanPath(path), Requirement{RequireAuth: true, Roles: rule.Roles})
	}
}

func cleanPath(path string) string {
	path = strings.TrimSpace(path)
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	if path == "" {
		return PathHome
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return PathHome
		}
	}
	return path
}
