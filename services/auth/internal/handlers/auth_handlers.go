package handlers

import (
	"net/http"

	mw "github.com/rrucricket/attendance/pkg/middleware"
	"github.com/rrucricket/attendance/pkg/response"
	"github.com/rrucricket/attendance/services/auth/internal/domain"
	"github.com/rrucricket/attendance/services/auth/internal/otp"
)

// withDevCode echoes the code back when emails are only printed locally.
func (h *Handlers) withDevCode(body map[string]any, rec *otp.Record) map[string]any {
	if h.config.Email.DevMode && rec != nil {
		body["dev_code"] = rec.Code
	}
	return body
}

// Register handles user registration
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	message := "Registration successful. Check your email for a verification code."
	if result.Verification == nil {
		message = "Registration successful, but we could not send the verification email. Request a new code."
	}

	response.WriteJSON(w, http.StatusCreated, h.withDevCode(map[string]any{
		"message": message,
		"user":    result.User.ToUserInfo(),
	}, result.Verification))
}

// VerifyEmail handles email verification
func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req domain.OTPVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.authService.VerifyEmail(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Email verified successfully",
		"user":    user.ToUserInfo(),
	})
}

// ResendVerification handles resending verification emails
func (h *Handlers) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req domain.OTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.authService.ResendVerification(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, h.withDevCode(map[string]any{
		"message": "Verification code sent",
	}, rec))
}

// Login handles user authentication
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handlers) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.AdminLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.authService.AdminLogin(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), mw.SessionFrom(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in user or admin.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	principal, err := h.authService.Me(r.Context(), mw.SessionFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if principal.Kind == domain.PrincipalAdmin {
		response.WriteJSON(w, http.StatusOK, map[string]any{
			"kind":  principal.Kind,
			"admin": principal.Admin,
		})
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"kind": principal.Kind,
		"user": principal.User.ToUserInfo(),
	})
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.authService.UpdateProfile(r.Context(), mw.SessionFrom(r.Context()), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, user.ToUserInfo())
}

// Password reset handlers

func (h *Handlers) RequestPasswordResetOtp(w http.ResponseWriter, r *http.Request) {
	var req domain.OTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.authService.RequestPasswordResetOtp(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, h.withDevCode(map[string]any{
		"message": "If an account exists for this email, a reset code has been sent.",
	}, rec))
}

func (h *Handlers) VerifyPasswordResetOtp(w http.ResponseWriter, r *http.Request) {
	var req domain.OTPVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.authService.VerifyPasswordResetOtp(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ApplyNewPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.NewPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.ApplyNewPassword(r.Context(), &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password updated. You can now log in with your new password.",
	})
}

// Admin handlers

// ListUsers handles listing all users (admin only)
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	users, total, err := h.authService.ListUsers(r.Context(), domain.ListUsersQuery{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Convert to user info (without sensitive data)
	userInfos := make([]*domain.UserInfo, len(users))
	for i := range users {
		userInfos[i] = users[i].ToUserInfo()
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"users":  userInfos,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetUser handles getting a specific user (admin only)
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	user, err := h.authService.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, user.ToUserInfo())
}

// UpdateUser changes a user's name or role (admin only)
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req domain.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.authService.UpdateUser(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, user.ToUserInfo())
}

// DeleteUser handles deleting a user (admin only)
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.authService.DeleteUser(r.Context(), mw.SessionFrom(r.Context()), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
