package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/purplix/backend/internal/purplix/service"
	"github.com/purplix/backend/pkg/apierr"
	"github.com/purplix/backend/pkg/slogx"
)

// errorTable maps service sentinels to their API errors. Order matters only
// for errors wrapping more than one sentinel.
var errorTable = []struct {
	err error
	api *apierr.Error
}{
	{service.ErrInvalidRequest, apierr.ErrInvalidRequest},
	{service.ErrNotAuthenticated, apierr.ErrNotAuthenticated},
	{service.ErrUserNotFound, apierr.ErrUserNotFound},
	{service.ErrInvalidAuth, apierr.ErrInvalidAuth},
	{service.ErrInvalidCaptcha, apierr.ErrInvalidCaptcha},
	{service.ErrEmailTaken, apierr.ErrEmailTaken},
	{service.ErrRegistrationOff, apierr.ErrRegistrationDisabled},
	{service.ErrOTPCompleted, apierr.ErrOTPCompleted},
	{service.ErrTooManyWebhooks, apierr.ErrTooManyWebhooks},
	{service.ErrUnsafeWebhook, apierr.ErrLocalDomain},
	{service.ErrSessionNotFound, apierr.ErrSessionNotFound},
	{service.ErrDomainValidation, apierr.ErrDomainValidation},
	{service.ErrCanaryTaken, apierr.ErrCanaryTaken},
	{service.ErrCanaryNotFound, apierr.ErrCanaryNotFound},
	{service.ErrWarrantNotFound, apierr.ErrWarrantNotFound},
	{service.ErrAlreadySubscribed, apierr.ErrAlreadySubscribed},
	{service.ErrAlreadyTrusted, apierr.ErrAlreadyTrusted},
	{service.ErrUploadTooBig, apierr.ErrUploadTooBig},
	{service.ErrUnsupportedFile, apierr.ErrUnsupportedFileType},
	{service.ErrSurveyNotFound, apierr.ErrSurveyNotFound},
	{service.ErrSurveyInvalid, apierr.ErrSurveyInvalid},
	{service.ErrSurveyRequired, apierr.ErrSurveyRequired},
	{service.ErrSurveyAlreadySubmitted, apierr.ErrSurveySubmitted},
	{service.ErrSurveyProxyBlock, apierr.ErrSurveyProxyBlock},
	{service.ErrSurveyResultNotFound, apierr.ErrSurveyResultNotFound},
}

// writeError answers with the API error for err. Anything unmapped is a
// store, cache or collaborator failure: it is logged and hidden behind 1000.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		apiErr.WriteError(w)
		return
	}
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			e.api.WriteError(w)
			return
		}
	}
	slogx.FromContext(r.Context()).Error("request failed", slog.Any("err", err))
	apierr.ErrInternal.WriteError(w)
}
