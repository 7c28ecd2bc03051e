package http

import (
	"net/http"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/service"
	"github.com/purplix/backend/pkg/apierr"
	"github.com/purplix/backend/pkg/httpx"
	"github.com/purplix/backend/pkg/purplixsdk"
	"github.com/purplix/backend/pkg/slogx"
)

// AccountHandler serves registration, login and account settings.
type AccountHandler struct {
	Accounts      *service.AccountService
	OTP           *service.OTPService
	Sessions      *service.SessionService
	SecureCookies bool
}

// principal returns the caller set by RequireSession.
func principal(w http.ResponseWriter, r *http.Request) (userID, sessionID string, ok bool) {
	userID, ok = httpx.UserID(r.Context())
	if !ok {
		apierr.ErrNotAuthenticated.WriteError(w)
		return "", "", false
	}
	sessionID, _ = httpx.SessionID(r.Context())
	return userID, sessionID, true
}

// HandleRegister handles POST /v1/account.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req purplixsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Accounts.Register(r.Context(), service.RegisterParams{
		Email:       req.Email,
		Credentials: credentialsIn(req.Credentials),
		Captcha:     req.Captcha,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, purplixsdk.RegisterResponse{
		User:               userOut(res.User),
		OTPProvisioningURI: res.OTPURI,
	})
}

// HandlePublic handles GET /v1/account/{email}/public.
func (h *AccountHandler) HandlePublic(w http.ResponseWriter, r *http.Request) {
	kdf, err := h.Accounts.PublicKDF(r.Context(), r.PathValue("email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, kdfOut(kdf))
}

// HandleToSign handles GET /v1/account/{email}/to-sign.
func (h *AccountHandler) HandleToSign(w http.ResponseWriter, r *http.Request) {
	proof, err := h.Accounts.RequestChallenge(r.Context(), r.PathValue("email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, purplixsdk.ChallengeResponse{
		ID:        proof.ID,
		ToSign:    proof.ToSign,
		ExpiresAt: proof.ExpiresAt,
	})
}

// HandleLogin handles POST /v1/account/{email}/login. The token is returned
// both as an HttpOnly cookie for browsers and in the body for API clients.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req purplixsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Accounts.Login(ctx, service.LoginParams{
		Email:       r.PathValue("email"),
		ChallengeID: req.ID,
		Signature:   req.Signature,
		OTP:         req.OTP,
		Captcha:     req.Captcha,
		OneDay:      req.OneDay,
		ClientIP:    httpx.ClientIPFromContext(ctx),
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		slogx.FromContext(ctx).Info("login rejected", "err", err)
		writeError(w, r, err)
		return
	}

	httpx.SetSessionCookie(w, res.Token, res.Session.ExpiresAt, h.SecureCookies)
	httpx.WriteJSON(w, http.StatusOK, purplixsdk.LoginResponse{
		Token:     res.Token,
		SessionID: res.Session.ID,
		ExpiresAt: res.Session.ExpiresAt,
		User:      userOut(res.User),
	})
}

// HandleVerifyEmail handles GET /v1/account/{email}/email/verify/{secret}.
func (h *AccountHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.Accounts.VerifyEmail(r.Context(), r.PathValue("email"), r.PathValue("secret")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResendVerification handles POST /v1/account/email/resend.
func (h *AccountHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.Accounts.ResendVerification(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe handles GET /v1/account/me.
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	u, err := h.Accounts.Me(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userOut(u))
}

// HandleOTPSetup handles POST /v1/account/otp/setup.
func (h *AccountHandler) HandleOTPSetup(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	var req purplixsdk.OTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.OTP.Setup(r.Context(), userID, req.OTP); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleOTPReset handles POST /v1/account/otp/reset. Every session ends,
// including the caller's.
func (h *AccountHandler) HandleOTPReset(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	var req purplixsdk.OTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	reset, err := h.OTP.Reset(r.Context(), userID, req.OTP)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.ClearSessionCookie(w, h.SecureCookies)
	httpx.WriteJSON(w, http.StatusOK, purplixsdk.OTPResetResponse{
		Secret:          reset.Secret,
		ProvisioningURI: reset.URI,
	})
}

// HandlePasswordReset handles POST /v1/account/password/reset.
func (h *AccountHandler) HandlePasswordReset(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	var req purplixsdk.ResetCredentialsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Accounts.ResetCredentials(r.Context(), userID, req.OTP, credentialsIn(req.Credentials)); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.ClearSessionCookie(w, h.SecureCookies)
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogout handles DELETE /v1/account/logout.
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.Sessions.Logout(r.Context(), userID, sessionID); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.ClearSessionCookie(w, h.SecureCookies)
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Notification preferences
// ============================================================================

func kindParam(r *http.Request) domain.NotificationKind {
	return domain.NotificationKind(r.PathValue("kind"))
}

// HandleEnableEmail handles POST /v1/account/notifications/email/{kind}.
func (h *AccountHandler) HandleEnableEmail(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.Accounts.EnableEmail(r.Context(), userID, kindParam(r)))
}

// HandleDisableEmail handles DELETE /v1/account/notifications/email/{kind}.
func (h *AccountHandler) HandleDisableEmail(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.Accounts.DisableEmail(r.Context(), userID, kindParam(r)))
}

// HandleSetPush handles POST /v1/account/notifications/push/{kind}.
func (h *AccountHandler) HandleSetPush(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	var req purplixsdk.PushRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r, h.Accounts.SetPush(r.Context(), userID, kindParam(r), req.Topic))
}

// HandleRemovePush handles DELETE /v1/account/notifications/push/{kind}.
func (h *AccountHandler) HandleRemovePush(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.Accounts.RemovePush(r.Context(), userID, kindParam(r)))
}

// HandleAddWebhook handles POST /v1/account/notifications/webhook/{kind}.
func (h *AccountHandler) HandleAddWebhook(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	var req purplixsdk.WebhookRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r, h.Accounts.AddWebhook(r.Context(), userID, kindParam(r), req.URL))
}

// HandleRemoveWebhook handles DELETE /v1/account/notifications/webhook/{kind}.
func (h *AccountHandler) HandleRemoveWebhook(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	var req purplixsdk.WebhookRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r, h.Accounts.RemoveWebhook(r.Context(), userID, kindParam(r), req.URL))
}

// HandleIPLookupOn handles POST /v1/account/privacy/ip-lookup.
func (h *AccountHandler) HandleIPLookupOn(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.Accounts.SetIPLookupConsent(r.Context(), userID, true))
}

// HandleIPLookupOff handles DELETE /v1/account/privacy/ip-lookup.
func (h *AccountHandler) HandleIPLookupOff(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.Accounts.SetIPLookupConsent(r.Context(), userID, false))
}

func (h *AccountHandler) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
