package authapi

import "keel/cmd/identity"

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the public projection of a user: never the password hash,
// never refresh token material.
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:    u.ID,
		Email: u.Email,
		Role:  string(u.Role),
	}
}
