package http

import (
	"net/http"
	"strconv"

	"github.com/purplix/backend/internal/purplix/service"
	"github.com/purplix/backend/pkg/apierr"
	"github.com/purplix/backend/pkg/httpx"
	"github.com/purplix/backend/pkg/purplixsdk"
)

// SurveyHandler serves survey definitions, submissions and results.
type SurveyHandler struct {
	Surveys       *service.SurveyService
	SecureCookies bool
}

// HandleCreate handles POST /v1/survey.
func (h *SurveyHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	var req purplixsdk.CreateSurveyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sv, err := h.Surveys.Create(r.Context(), userID, surveyParamsIn(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, surveyOut(sv))
}

// HandleGet handles GET /v1/survey/{id}.
func (h *SurveyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sv, err := h.Surveys.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, surveyOut(sv))
}

// HandleSubmit handles POST /v1/survey/{id}/submit. A session is optional;
// the gate decides whether the survey needs one.
func (h *SurveyHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var req purplixsdk.SubmitSurveyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	_, cookieErr := r.Cookie(service.SubmittedCookieName)
	res, err := h.Surveys.Submit(ctx, service.SubmitParams{
		SurveyID:     id,
		Answers:      answersIn(req.Answers),
		IPKey:        req.IPKey,
		Captcha:      req.Captcha,
		SessionToken: httpx.SessionToken(r),
		HasSubmitted: cookieErr == nil,
		ClientIP:     httpx.ClientIPFromContext(ctx),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if res.SetCookie {
		http.SetCookie(w, &http.Cookie{
			Name:     service.SubmittedCookieName,
			Value:    "true",
			Path:     service.SubmittedCookiePath(id),
			MaxAge:   int(service.SubmittedCookieMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   h.SecureCookies,
			SameSite: http.SameSiteStrictMode,
		})
	}
	httpx.WriteJSON(w, http.StatusCreated, purplixsdk.SubmitSurveyResponse{
		ID:        res.Answer.ID,
		Responses: res.Responses,
	})
}

// HandleClose handles POST /v1/survey/{id}/close.
func (h *SurveyHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.Surveys.Close(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResults handles GET /v1/survey/{id}/results/{page}.
func (h *SurveyHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := principal(w, r)
	if !ok {
		return
	}
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || page < 0 {
		apierr.ErrInvalidRequest.WithDetail("page must be a non-negative integer").WriteError(w)
		return
	}
	a, err := h.Surveys.Results(r.Context(), userID, r.PathValue("id"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, answerOut(a))
}
