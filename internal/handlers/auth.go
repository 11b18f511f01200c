package handlers

import (
	"net/http"
	"strings"

	"github.com/murmurnet/murmur/internal/auth"
	"github.com/murmurnet/murmur/internal/models"
)

// SignupHandler registers a new account and issues a verification code to
// the given email address.
func (h *Handler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	if err := models.ValidateSignup(req.Name, req.Email, req.Username, req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if existing, err := h.store.GetUserByEmail(r.Context(), req.Email); err != nil {
		h.internalError(w, err, "check existing email")
		return
	} else if existing != nil {
		respondError(w, http.StatusBadRequest, "An account with this email already exists.")
		return
	}
	if existing, err := h.store.GetUserByUsername(r.Context(), req.Username); err != nil {
		h.internalError(w, err, "check existing username")
		return
	} else if existing != nil {
		respondError(w, http.StatusBadRequest, "Username is already taken.")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.internalError(w, err, "hash password")
		return
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		h.internalError(w, err, "create user")
		return
	}

	if err := h.otp.Issue(r.Context(), user.Email); err != nil {
		// Undo the insert; otherwise a retry hits the duplicate-email
		// check with no way to ever receive a code.
		if dberr := h.store.DeleteUser(r.Context(), user.ID); dberr != nil {
			h.log.Error().Err(dberr).Str("email", user.Email).Msg("roll back unverified user")
		}
		h.internalError(w, err, "issue verification code")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Account created. Check your email for a verification code.",
		"user":    user,
	})
}

// ResendCodeHandler issues a fresh verification code for an account that
// has not verified yet. Covers a lost email as well as codes that expired
// before the user got to them.
func (h *Handler) ResendCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		h.internalError(w, err, "load user for resend")
		return
	}
	if user == nil {
		respondError(w, http.StatusNotFound, "No account with this email.")
		return
	}
	if user.Verified {
		respondError(w, http.StatusBadRequest, "This account is already verified.")
		return
	}

	if err := h.otp.Issue(r.Context(), user.Email); err != nil {
		h.internalError(w, err, "issue verification code")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Verification code sent."})
}

// VerifyHandler checks a submitted OTP and marks the account verified.
func (h *Handler) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ok, err := h.otp.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		h.internalError(w, err, "verify code")
		return
	}
	if !ok {
		respondError(w, http.StatusBadRequest, "Verification code is invalid or expired.")
		return
	}

	if err := h.store.MarkVerified(r.Context(), req.Email); err != nil {
		h.internalError(w, err, "mark verified")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Email verified."})
}

// LoginHandler checks credentials and issues a bearer token.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		h.internalError(w, err, "load user for login")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.internalError(w, err, "issue token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}
