package auth

// User is the profile returned by GET /users/me.
type User struct {
	Name       string  `json:"name"`
	ProfilePic *string `json:"profilePic,omitempty"`
}

// LoginRequest represents the credentials posted to /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=6"`
}

// RegisterForm is everything the registration form collects.
// ConfirmPassword is checked locally and never leaves the client.
type RegisterForm struct {
	Name            string `json:"name" validate:"min=2"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

// RegisterRequest represents the body posted to /auth/register
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Request strips the form down to the wire request.
func (f RegisterForm) Request() RegisterRequest {
	return RegisterRequest{
		Name:     f.Name,
		Email:    f.Email,
		Password: f.Password,
	}
}

// AuthResponse is returned by login, register and refresh.
type AuthResponse struct {
	Success     bool   `json:"success,omitempty"`
	AccessToken string `json:"accessToken"`
}
