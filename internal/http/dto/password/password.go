// Package password contiene los DTOs del reset de password.
package password

type ResetRequest struct {
	Email string `json:"email"`
	// AuthReqPID es el pid del login desde el que se pidió el reset (query ?pid=).
	AuthReqPID string `json:"-"`
}

type ResetResponse struct {
	PassResetPID string `json:"passResetPid"`
}

type CodeRequest struct {
	PassResetPID string `json:"-"`
	Code         string `json:"code"`
}

type ConfirmRequest struct {
	PassResetPID         string `json:"-"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
}

type ConfirmResponse struct {
	AuthReqPID string `json:"authReqPid"`
}
