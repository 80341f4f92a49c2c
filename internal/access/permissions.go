package access

import (
	"slices"
	"strings"

	"yello-auth/internal/model"
)

type Permission string

const (
	PermViewClasses       Permission = "view_classes"
	PermCreateLessons     Permission = "create_lessons"
	PermManageStudents    Permission = "manage_students"
	PermViewReports       Permission = "view_reports"
	PermViewLessons       Permission = "view_lessons"
	PermTakeQuizzes       Permission = "take_quizzes"
	PermViewProgress      Permission = "view_progress"
	PermViewChildProgress Permission = "view_child_progress"
	PermManageSchool      Permission = "manage_school"
	PermManageUsers       Permission = "manage_users"
	PermViewAllReports    Permission = "view_all_reports"
	PermSystemSettings    Permission = "system_settings"
)

var rolePermissions = map[model.Role][]Permission{
	model.RoleTeacher: {PermViewClasses, PermCreateLessons, PermManageStudents, PermViewReports},
	model.RoleStudent: {PermViewLessons, PermTakeQuizzes, PermViewProgress},
	model.RoleParent:  {PermViewChildProgress, PermViewReports},
	model.RoleAdmin:   {PermManageSchool, PermManageUsers, PermViewAllReports, PermSystemSettings},
}

var roleDisplayNames = map[model.Role]string{
	model.RoleTeacher: "Enseignant",
	model.RoleStudent: "Élève",
	model.RoleParent:  "Parent",
	model.RoleAdmin:   "Administrateur",
}

func HasRole(user *model.User, roles ...model.Role) bool {
	if user == nil {
		return false
	}
	return slices.Contains(roles, user.Role)
}

func Permissions(role model.Role) []Permission {
	return slices.Clone(rolePermissions[role])
}

func HasPermission(user *model.User, permission Permission) bool {
	if user == nil {
		return false
	}
	return slices.Contains(rolePermissions[user.Role], permission)
}

// CanAccess requires one of roles (when given) and at least one of
// permissions (when given).
func CanAccess(user *model.User, roles []model.Role, permissions []Permission) bool {
	if user == nil {
		return false
	}
	if len(roles) > 0 && !HasRole(user, roles...) {
		return false
	}
	if len(permissions) == 0 {
		return true
	}
	for _, permission := range permissions {
		if HasPermission(user, permission) {
			return true
		}
	}
	return false
}

func RoleDisplayName(role model.Role) string {
	if name, ok := roleDisplayNames[role]; ok {
		return name
	}
	return string(role)
}

func UserDisplayName(user *model.User) string {
	if user == nil || strings.TrimSpace(user.Name) == "" {
		return "Utilisateur"
	}
	return user.Name
}
