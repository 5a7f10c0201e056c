package dto

import (
	"time"

	"acmesync/internal/domain/user"
)

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued token and the account it belongs to.
type LoginResponse struct {
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	User        UserResponse `json:"user"`
}

// UserResponse is the public form of an account.
type UserResponse struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int64     `json:"version"`
}

// FromUser creates a response DTO from the domain account.
func FromUser(u *user.User) UserResponse {
	return UserResponse{
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		Version:   u.Version,
	}
}

// UpsertUserRequest is the request body for PUT /users.
type UpsertUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// ToInput converts the DTO to a service input.
func (r *UpsertUserRequest) ToInput() user.UpsertInput {
	return user.UpsertInput{
		Username: r.Username,
		Password: r.Password,
		Role:     r.Role,
	}
}
