package http

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/service"
	"github.com/purplix/backend/pkg/apierr"
	"github.com/purplix/backend/pkg/httpx"
	"github.com/purplix/backend/pkg/purplixsdk"
)

// multipartOverhead is the room left for boundaries and part headers on top
// of the logo itself.
const multipartOverhead = 64 << 10

// CanaryHandler serves canaries, their warrants, subscriptions and trust.
type CanaryHandler struct {
	Canaries *service.CanaryService
}

// HandleCreate handles POST /v1/canary.
func (h *CanaryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	var req purplixsdk.CreateCanaryRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.Canaries.Create(r.Context(), userID, service.CreateCanaryParams{
		Domain:     req.Domain,
		About:      req.About,
		Signature:  req.Signature,
		Algorithms: req.Algorithms,
		PublicKey:  req.PublicKey,
		PrivateKey: sealedIn(req.PrivateKey),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, canaryOut(c, h.Canaries.LogoURL(c), true))
}

// HandleList handles GET /v1/canary.
func (h *CanaryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	canaries, err := h.Canaries.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]purplixsdk.Canary, 0, len(canaries))
	for _, c := range canaries {
		out = append(out, canaryOut(c, h.Canaries.LogoURL(c), true))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandlePublic handles GET /v1/canary/{domain}/public.
func (h *CanaryHandler) HandlePublic(w http.ResponseWriter, r *http.Request) {
	c, err := h.Canaries.Get(r.Context(), r.PathValue("domain"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, canaryOut(c, h.Canaries.LogoURL(c), false))
}

// HandleVerify handles POST /v1/canary/{domain}/verify.
func (h *CanaryHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.Canaries.AttemptVerify(r.Context(), userID, r.PathValue("domain")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete handles DELETE /v1/canary/{domain}.
func (h *CanaryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	var req purplixsdk.OTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Canaries.Delete(r.Context(), userID, r.PathValue("domain"), req.OTP); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogo handles POST /v1/canary/{domain}/logo. The body is a multipart
// form with exactly one file.
func (h *CanaryHandler) HandleLogo(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}

	limit := h.Canaries.LogoMaxSize
	if limit <= 0 {
		limit = service.DefaultLogoMaxSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			apierr.ErrUploadTooBig.WriteError(w)
			return
		}
		apierr.ErrInvalidRequest.WithDetail("expected a multipart form").WriteError(w)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var header *multipart.FileHeader
	files := 0
	for _, fhs := range r.MultipartForm.File {
		files += len(fhs)
		if len(fhs) > 0 {
			header = fhs[0]
		}
	}
	switch {
	case files == 0:
		apierr.ErrInvalidRequest.WithDetail("no file uploaded").WriteError(w)
		return
	case files > 1:
		apierr.ErrTooManyFiles.WriteError(w)
		return
	}

	f, err := header.Open()
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	url, err := h.Canaries.UploadLogo(r.Context(), userID, r.PathValue("domain"), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, purplixsdk.LogoResponse{URL: url})
}

// HandleCreateWarrant handles POST /v1/canary/{domain}/warrant.
func (h *CanaryHandler) HandleCreateWarrant(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	var req purplixsdk.CreateWarrantRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	wr, err := h.Canaries.CreateWarrant(r.Context(), userID, r.PathValue("domain"), domain.NextCanary(req.Next), req.OTP)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, warrantOut(wr))
}

// HandlePublishWarrant handles POST /v1/canary/{domain}/warrant/{id}/publish.
func (h *CanaryHandler) HandlePublishWarrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	var req purplixsdk.PublishWarrantRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.Canaries.Own(ctx, userID, r.PathValue("domain")); err != nil {
		writeError(w, r, err)
		return
	}
	err := h.Canaries.PublishWarrant(ctx, userID, r.PathValue("id"), domain.WarrantPublication{
		Signature:      req.Signature,
		BTCLatestBlock: req.BTCLatestBlock,
		Statement:      req.Statement,
		Concern:        domain.Concern(req.Concern),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePublishedWarrant handles GET /v1/canary/{domain}/warrant/{page}.
func (h *CanaryHandler) HandlePublishedWarrant(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || page < 0 {
		apierr.ErrInvalidRequest.WithDetail("page must be a non-negative integer").WriteError(w)
		return
	}
	wr, err := h.Canaries.PublishedWarrant(r.Context(), r.PathValue("domain"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, warrantOut(wr))
}

// HandleSubscribe handles POST /v1/canary/{domain}/subscribe.
func (h *CanaryHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.Canaries.Subscribe(r.Context(), userID, r.PathValue("domain")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUnsubscribe handles DELETE /v1/canary/{domain}/subscribe.
func (h *CanaryHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.Canaries.Unsubscribe(r.Context(), userID, r.PathValue("domain")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSubscribed handles GET /v1/canary/{domain}/subscribed.
func (h *CanaryHandler) HandleSubscribed(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	subscribed, err := h.Canaries.IsSubscribed(r.Context(), userID, r.PathValue("domain"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, purplixsdk.SubscribedResponse{Subscribed: subscribed})
}

// HandleTrust handles POST /v1/canary/{domain}/trust.
func (h *CanaryHandler) HandleTrust(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	var req purplixsdk.TrustRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Canaries.Trust(r.Context(), userID, r.PathValue("domain"), req.PublicKeyHash, req.Signature); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListTrusted handles GET /v1/canary/trusted.
func (h *CanaryHandler) HandleListTrusted(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	trusted, err := h.Canaries.ListTrusted(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]purplixsdk.TrustedCanary, 0, len(trusted))
	for _, t := range trusted {
		out = append(out, trustedOut(t))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleGetTrusted handles GET /v1/canary/trusted/{domain}.
func (h *CanaryHandler) HandleGetTrusted(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	t, err := h.Canaries.GetTrusted(r.Context(), userID, r.PathValue("domain"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, trustedOut(t))
}
