package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-email-verify/internal/application/verification"
	"github.com/go-email-verify/internal/domain"
)

// User-facing messages. Each failure carries its own guidance even where
// the status code is shared.
const (
	msgCodeSent       = "verification code sent"
	msgSendMissing    = "email, nickname and password are required"
	msgDeliveryFailed = "failed to send verification email, please try again"
	msgSendInternal   = "could not issue a verification code, please try again"
	msgVerified       = "email verified"
	msgVerifyMissing  = "email and code are required"
	msgNotFound       = "no pending registration for this email, request a new code"
	msgExpired        = "verification code has expired, request a new code"
	msgMismatch       = "verification code is incorrect, check it and try again"
	msgVerifyInternal = "could not verify the code, please try again"
	msgInvalidBody    = "invalid request body"
)

// VerificationHandler serves /send-code and /verify-code.
type VerificationHandler struct {
	svc verification.Service
}

func NewVerificationHandler(svc verification.Service) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

// sendCodeBody accepts nickname and password either at the top level or
// nested under registrationData; top-level values win.
type sendCodeBody struct {
	Email            string `json:"email"`
	Nickname         string `json:"nickname"`
	Password         string `json:"password"`
	RegistrationData *struct {
		Nickname string `json:"nickname"`
		Password string `json:"password"`
	} `json:"registrationData"`
}

func (b sendCodeBody) request() verification.SendCodeRequest {
	req := verification.SendCodeRequest{Email: b.Email, Nickname: b.Nickname, Password: b.Password}
	if b.RegistrationData != nil {
		if req.Nickname == "" {
			req.Nickname = b.RegistrationData.Nickname
		}
		if req.Password == "" {
			req.Password = b.RegistrationData.Password
		}
	}
	return req
}

func (h *VerificationHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var body sendCodeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	err := h.svc.RequestCode(r.Context(), body.request())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ResultEnvelope{Success: true, Message: msgCodeSent})
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, msgSendMissing)
	case errors.Is(err, domain.ErrDeliveryFailed):
		writeError(w, http.StatusInternalServerError, msgDeliveryFailed)
	default:
		writeError(w, http.StatusInternalServerError, msgSendInternal)
	}
}

func (h *VerificationHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verification.VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	res, err := h.svc.ConfirmCode(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ResultEnvelope{
			Success:  true,
			Message:  msgVerified,
			UserData: &UserData{Email: res.Email, Nickname: res.Nickname},
			Token:    res.Token,
		})
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, msgVerifyMissing)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusBadRequest, msgNotFound)
	case errors.Is(err, domain.ErrExpired):
		writeError(w, http.StatusBadRequest, msgExpired)
	case errors.Is(err, domain.ErrCodeMismatch):
		writeError(w, http.StatusBadRequest, msgMismatch)
	default:
		writeError(w, http.StatusInternalServerError, msgVerifyInternal)
	}
}
