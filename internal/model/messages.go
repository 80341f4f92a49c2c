package model

import "strings"

const (
	LocaleFR      = "fr"
	LocaleEN      = "en"
	DefaultLocale = LocaleFR
)

type Operation string

const (
	OpLogin    Operation = "login"
	OpRegister Operation = "register"
	OpLogout   Operation = "logout"
	OpRefresh  Operation = "refresh"
	OpCheck    Operation = "check"
)

var kindMessages = map[string]map[ErrorKind]string{
	LocaleFR: {
		KindInvalidCredentials: "Email ou mot de passe incorrect",
		KindPasswordMismatch:   "Les mots de passe ne correspondent pas",
		KindWeakPassword:       "Le mot de passe doit contenir au moins 6 caractères",
		KindEmailTaken:         "Un compte avec cet email existe déjà",
		KindInvalidToken:       "Token invalide ou expiré",
		KindNoRefreshToken:     "Aucun refresh token disponible",
		KindBusy:               "Une opération est déjà en cours",
		KindValidation:         "Veuillez remplir tous les champs",
		KindForbidden:          "Accès non autorisé",
	},
	LocaleEN: {
		KindInvalidCredentials: "Incorrect email or password",
		KindPasswordMismatch:   "Passwords do not match",
		KindWeakPassword:       "Password must be at least 6 characters long",
		KindEmailTaken:         "An account with this email already exists",
		KindInvalidToken:       "Invalid or expired token",
		KindNoRefreshToken:     "No refresh token available",
		KindBusy:               "An operation is already in progress",
		KindValidation:         "Please fill in all fields",
		KindForbidden:          "Access denied",
	},
}

var operationFallbacks = map[string]map[Operation]string{
	LocaleFR: {
		OpLogin:    "Erreur de connexion",
		OpRegister: "Erreur d'inscription",
	},
	LocaleEN: {
		OpLogin:    "Login failed",
		OpRegister: "Registration failed",
	},
}

var genericFallback = map[string]string{
	LocaleFR: "Une erreur est survenue",
	LocaleEN: "Something went wrong",
}

func SupportedLocale(locale string) bool {
	_, ok := kindMessages[normalizeLocale(locale)]
	return ok
}

// Message formats a failure for display. Unknown kinds fall back to the
// operation's generic message.
func Message(locale string, op Operation, kind ErrorKind) string {
	locale = normalizeLocale(locale)
	if _, ok := kindMessages[locale]; !ok {
		locale = DefaultLocale
	}

	if msg, ok := kindMessages[locale][kind]; ok {
		return msg
	}
	if msg, ok := operationFallbacks[locale][op]; ok {
		return msg
	}
	return genericFallback[locale]
}

func normalizeLocale(locale string) string {
	return strings.ToLower(strings.TrimSpace(locale))
}
