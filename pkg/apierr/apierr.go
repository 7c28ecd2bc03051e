// Package apierr defines the error body every endpoint returns. Codes are a
// client contract: never renumber an existing one, only append.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Error codes
// ============================================================================

const (
	// Generic request handling.
	CodeInternal         = 1000
	CodeInvalidRequest   = 1001
	CodeNotAuthenticated = 1002
	CodeRateLimited      = 1003

	// Account, canary and survey codes share one block.
	CodeUserNotFound            = 2001
	CodeInvalidAuth             = 2002
	CodeInvalidCaptcha          = 2003
	CodeEmailTaken              = 2004
	CodeOTPCompleted            = 2005
	CodeDomainValidation        = 2006
	CodeLocalDomain             = 2007
	CodeCanaryTaken             = 2008
	CodeUploadTooBig            = 2009
	CodeCanaryNotFound          = 2010
	CodeUnsupportedFileType     = 2011
	CodeAlreadyTrustedCanary    = 2012
	CodeWarrantNotFound         = 2013
	CodeTooManyWebhooks         = 2014
	CodeTooManyFiles            = 2015
	CodeSurveyNotFound          = 2017
	CodeSurveyRequiredQuestions = 2018
	CodeSurveyAlreadySubmitted  = 2019
	CodeSurveyProxyBlock        = 2020
	CodeSurveyResultNotFound    = 2021
	CodeAlreadySubscribed       = 2022
	CodeSessionNotFound         = 2023
	CodeRegistrationDisabled    = 2024
	CodeSurveyInvalid           = 2025
)

// ============================================================================
// Error
// ============================================================================

// Error is the JSON error body. It doubles as a Go error so clients and
// tests can decode a response straight into it.
type Error struct {
	Status int    `json:"status_code"`
	Code   int    `json:"error_code"`
	Detail string `json:"detail"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Detail)
}

// Is matches on the numeric code so errors.Is works against the predefined
// values even after a JSON round trip.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// WithDetail returns a copy with a more specific message.
func (e *Error) WithDetail(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WriteError writes the error as a non-cacheable JSON response.
func (e *Error) WriteError(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e)
}

func newError(status, code int, detail string) *Error {
	return &Error{Status: status, Code: code, Detail: detail}
}

// ============================================================================
// Predefined errors
// ============================================================================

var (
	ErrInternal         = newError(http.StatusInternalServerError, CodeInternal, "Internal server error")
	ErrInvalidRequest   = newError(http.StatusBadRequest, CodeInvalidRequest, "Invalid request")
	ErrNotAuthenticated = newError(http.StatusUnauthorized, CodeNotAuthenticated, "Not authenticated")
	ErrRateLimited      = newError(http.StatusTooManyRequests, CodeRateLimited, "Too many requests, try again later")

	ErrUserNotFound         = newError(http.StatusNotFound, CodeUserNotFound, "User not found")
	ErrInvalidAuth          = newError(http.StatusUnauthorized, CodeInvalidAuth, "Invalid account auth")
	ErrInvalidCaptcha       = newError(http.StatusUnauthorized, CodeInvalidCaptcha, "Invalid captcha")
	ErrEmailTaken           = newError(http.StatusBadRequest, CodeEmailTaken, "Email has already been registered")
	ErrOTPCompleted         = newError(http.StatusBadRequest, CodeOTPCompleted, "OTP setup is completed already")
	ErrDomainValidation     = newError(http.StatusBadRequest, CodeDomainValidation, "Domain validation failed")
	ErrLocalDomain          = newError(http.StatusBadRequest, CodeLocalDomain, "Domain resolves to a local or private address")
	ErrCanaryTaken          = newError(http.StatusBadRequest, CodeCanaryTaken, "Domain has already been registered")
	ErrUploadTooBig         = newError(http.StatusBadRequest, CodeUploadTooBig, "Uploaded file is larger than the max upload size")
	ErrCanaryNotFound       = newError(http.StatusNotFound, CodeCanaryNotFound, "Canary not found")
	ErrUnsupportedFileType  = newError(http.StatusBadRequest, CodeUnsupportedFileType, "Uploaded file is not supported")
	ErrAlreadyTrusted       = newError(http.StatusConflict, CodeAlreadyTrustedCanary, "That canary has already been saved as a trusted canary")
	ErrWarrantNotFound      = newError(http.StatusNotFound, CodeWarrantNotFound, "Warrant not found")
	ErrTooManyWebhooks      = newError(http.StatusBadRequest, CodeTooManyWebhooks, "Too many webhooks added")
	ErrTooManyFiles         = newError(http.StatusBadRequest, CodeTooManyFiles, "Too many files uploaded")
	ErrSurveyNotFound       = newError(http.StatusNotFound, CodeSurveyNotFound, "Survey not found")
	ErrSurveyRequired       = newError(http.StatusBadRequest, CodeSurveyRequiredQuestions, "Required questions not answered")
	ErrSurveySubmitted      = newError(http.StatusConflict, CodeSurveyAlreadySubmitted, "Survey already submitted")
	ErrSurveyProxyBlock     = newError(http.StatusForbidden, CodeSurveyProxyBlock, "Submissions through proxies or VPNs are blocked")
	ErrSurveyResultNotFound = newError(http.StatusNotFound, CodeSurveyResultNotFound, "Survey result not found")
	ErrAlreadySubscribed    = newError(http.StatusConflict, CodeAlreadySubscribed, "Already subscribed to this canary")
	ErrSessionNotFound      = newError(http.StatusNotFound, CodeSessionNotFound, "Session not found")
	ErrRegistrationDisabled = newError(http.StatusForbidden, CodeRegistrationDisabled, "Registration is disabled")
	ErrSurveyInvalid        = newError(http.StatusBadRequest, CodeSurveyInvalid, "Survey definition is invalid")
)
