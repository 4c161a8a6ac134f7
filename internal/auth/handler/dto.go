package handler

import "time"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type resetRequestRequest struct {
	Email string `json:"email"`
}

type resetVerifyRequest struct {
	Token     string `json:"token"`
	AccountID string `json:"accountId"`
}

type tokenResponse struct {
	AccessToken        string    `json:"accessToken"`
	AccessTokenExpiry  time.Time `json:"accessTokenExpiry"`
	RefreshToken       string    `json:"refreshToken"`
	RefreshTokenExpiry time.Time `json:"refreshTokenExpiry"`
	Permissions        []string  `json:"permissions"`
}

type resetVerifyResponse struct {
	Valid bool `json:"valid"`
}
