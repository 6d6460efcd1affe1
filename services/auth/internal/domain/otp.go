package domain

import (
	"strings"

	"github.com/rrucricket/attendance/pkg/validation"
)

type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type OTPVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,otp"`
}

type ResetTokenResponse struct {
	ResetToken string `json:"reset_token"`
	ExpiresIn  int64  `json:"expires_in"`
}

type NewPasswordRequest struct {
	ResetToken  string `json:"reset_token" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=128"`
}

func (r *OTPRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *OTPVerifyRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.Code = strings.TrimSpace(r.Code)
}

func (r *NewPasswordRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.ResetToken = strings.TrimSpace(r.ResetToken)
}

func (r *OTPRequest) Validate() error         { return validation.Struct(r) }
func (r *OTPVerifyRequest) Validate() error   { return validation.Struct(r) }
func (r *NewPasswordRequest) Validate() error { return validation.Struct(r) }
