package service

import "errors"

// Sentinel errors returned by the services. The HTTP layer maps each to a
// stable error code; anything else is an internal error.
var (
	ErrInvalidRequest    = errors.New("invalid_request")
	ErrNotAuthenticated  = errors.New("not_authenticated")
	ErrUserNotFound      = errors.New("user_not_found")
	ErrInvalidAuth       = errors.New("invalid_auth")
	ErrInvalidCaptcha    = errors.New("invalid_captcha")
	ErrEmailTaken        = errors.New("email_taken")
	ErrRegistrationOff   = errors.New("registration_disabled")
	ErrOTPCompleted      = errors.New("otp_completed")
	ErrTooManyWebhooks   = errors.New("too_many_webhooks")
	ErrUnsafeWebhook     = errors.New("unsafe_webhook")
	ErrSessionNotFound   = errors.New("session_not_found")
	ErrDomainValidation  = errors.New("domain_validation")
	ErrCanaryTaken       = errors.New("canary_taken")
	ErrCanaryNotFound    = errors.New("canary_not_found")
	ErrWarrantNotFound   = errors.New("warrant_not_found")
	ErrAlreadySubscribed = errors.New("already_subscribed")
	ErrAlreadyTrusted    = errors.New("already_trusted")
	ErrUploadTooBig      = errors.New("upload_too_big")
	ErrUnsupportedFile   = errors.New("unsupported_file_type")

	ErrSurveyNotFound         = errors.New("survey_not_found")
	ErrSurveyInvalid          = errors.New("survey_invalid")
	ErrSurveyRequired         = errors.New("survey_required_questions")
	ErrSurveyAlreadySubmitted = errors.New("survey_already_submitted")
	ErrSurveyProxyBlock       = errors.New("survey_proxy_block")
	ErrSurveyResultNotFound   = errors.New("survey_result_not_found")
)
