package auth

type RegisterInput struct {
	DNI      string `json:"dni" binding:"required,max=20"`
	Name     string `json:"name" binding:"required,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is the account returned after register or login.
type UserResponse struct {
	ID      uint   `json:"id"`
	DNI     string `json:"dni"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
}
