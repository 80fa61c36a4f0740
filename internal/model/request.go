package model

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=4,bcryptlen"`
	About       string `json:"about" validate:"max=500"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,min=8,max=15"`
}

type ValidateTokenRequest struct {
	Token string `json:"token"`
}
