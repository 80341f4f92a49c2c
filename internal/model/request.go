package model

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Name            string `json:"name"`
	Role            Role   `json:"role"`
	SchoolID        string `json:"schoolId,omitempty"`
}

type ThemeRequest struct {
	Theme string `json:"theme"`
}
