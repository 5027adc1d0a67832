package dto

import "github.com/hongminglow/points-ledger/internal/models"

type RegisterRequest struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	PhoneNumber   string `json:"phoneNumber"`
	Password      string `json:"password"`
	City          string `json:"city"`
	Neighbourhood string `json:"neighbourhood"`
	BirthDate     string `json:"birthDate"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}
