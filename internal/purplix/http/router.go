package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/purplix/backend/internal/purplix/cache"
	"github.com/purplix/backend/internal/purplix/service"
	"github.com/purplix/backend/internal/purplix/store"
	"github.com/purplix/backend/pkg/apierr"
	"github.com/purplix/backend/pkg/httpx"
	"github.com/purplix/backend/pkg/slogx"
)

// Signer reports whether session tokens can be issued.
type Signer interface {
	IsReady() bool
}

// RouterConfig carries the shared dependencies that are not services.
type RouterConfig struct {
	BuildVersion string
	Store        store.Store
	Cache        cache.Cache
	Signer       Signer
	Logger       *slog.Logger

	// TrustProxyHeaders honours X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool

	// SecureCookies marks cookies Secure. Off only for localhost backends.
	SecureCookies bool
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion  string
	startTime     time.Time
	logger        *slog.Logger
	store         store.Store
	cache         cache.Cache
	signer        Signer
	secureCookies bool

	AccountService *service.AccountService
	SessionService *service.SessionService
	OTPService     *service.OTPService
	CanaryService  *service.CanaryService
	SurveyService  *service.SurveyService
}

func NewRouter(cfg RouterConfig) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slogx.Discard()
	}
	r := &Router{
		Mux:           http.NewServeMux(),
		buildVersion:  cfg.BuildVersion,
		startTime:     time.Now(),
		logger:        logger,
		store:         cfg.Store,
		cache:         cfg.Cache,
		signer:        cfg.Signer,
		secureCookies: cfg.SecureCookies,
	}

	// The client address is resolved first so the request log and every
	// limiter agree on it.
	r.middlewares = []httpx.Middleware{
		httpx.ClientIPMiddleware(cfg.TrustProxyHeaders),
		slogx.HTTPMiddleware(r.logger),
		httpx.RateLimitByIP(httpx.GlobalLimit),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAccount()
	r.registerSessions()
	r.registerCanary()
	r.registerSurvey()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authenticate adapts the session service to httpx.RequireSession. Only a
// rejected token is a 401; cache and store failures pass through as 500s.
func (r *Router) authenticate(ctx context.Context, token string) (string, string, error) {
	p, err := r.SessionService.Authenticate(ctx, token)
	if errors.Is(err, service.ErrNotAuthenticated) {
		return "", "", fmt.Errorf("%w: %v", apierr.ErrNotAuthenticated, err)
	}
	if err != nil {
		return "", "", err
	}
	return p.UserID, p.SessionID, nil
}

// secured wraps h with session authentication and a per-user limit.
func (r *Router) secured(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.RequireSession(r.authenticate),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{
		Accounts:      r.AccountService,
		OTP:           r.OTPService,
		Sessions:      r.SessionService,
		SecureCookies: r.secureCookies,
	}

	// Registration and the login handshake are the brute force surface:
	// strict limits per address, and per address and account for login.
	r.Mux.Handle("POST /v1/account",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /v1/account/{email}/public", http.HandlerFunc(h.HandlePublic))
	r.Mux.Handle("GET /v1/account/{email}/to-sign",
		httpx.Chain(http.HandlerFunc(h.HandleToSign),
			httpx.RateLimitByIPAndPath(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("POST /v1/account/{email}/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndPath(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("GET /v1/account/{email}/email/verify/{secret}",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyEmail),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /v1/account/me", r.secured(h.HandleMe, httpx.GlobalLimit))
	r.Mux.Handle("POST /v1/account/email/resend", r.secured(h.HandleResendVerification, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/account/otp/setup", r.secured(h.HandleOTPSetup, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/account/otp/reset", r.secured(h.HandleOTPReset, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/account/password/reset", r.secured(h.HandlePasswordReset, httpx.StrictLimit))
	r.Mux.Handle("DELETE /v1/account/logout", r.secured(h.HandleLogout, httpx.ModerateLimit))

	r.Mux.Handle("POST /v1/account/notifications/email/{kind}", r.secured(h.HandleEnableEmail, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/account/notifications/email/{kind}", r.secured(h.HandleDisableEmail, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/account/notifications/push/{kind}", r.secured(h.HandleSetPush, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/account/notifications/push/{kind}", r.secured(h.HandleRemovePush, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/account/notifications/webhook/{kind}", r.secured(h.HandleAddWebhook, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/account/notifications/webhook/{kind}", r.secured(h.HandleRemoveWebhook, httpx.ModerateLimit))

	r.Mux.Handle("POST /v1/account/privacy/ip-lookup", r.secured(h.HandleIPLookupOn, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/account/privacy/ip-lookup", r.secured(h.HandleIPLookupOff, httpx.ModerateLimit))
}

func (r *Router) registerSessions() {
	h := &SessionHandler{Sessions: r.SessionService, SecureCookies: r.secureCookies}

	r.Mux.Handle("GET /v1/session", r.secured(h.HandleList, httpx.GlobalLimit))
	r.Mux.Handle("DELETE /v1/session/{id}", r.secured(h.HandleInvalidate, httpx.ModerateLimit))
}

func (r *Router) registerCanary() {
	h := &CanaryHandler{Canaries: r.CanaryService}

	r.Mux.Handle("POST /v1/canary", r.secured(h.HandleCreate, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/canary", r.secured(h.HandleList, httpx.GlobalLimit))
	r.Mux.Handle("GET /v1/canary/trusted", r.secured(h.HandleListTrusted, httpx.GlobalLimit))

	// "trusted/{domain}" and "{domain}/public" overlap on
	// /v1/canary/trusted/public, which ServeMux refuses to register, so one
	// pattern serves both. "trusted" is never a valid canary domain.
	trusted := r.secured(h.HandleGetTrusted, httpx.GlobalLimit)
	public := http.HandlerFunc(h.HandlePublic)
	r.Mux.HandleFunc("GET /v1/canary/{first}/{second}", func(w http.ResponseWriter, req *http.Request) {
		switch {
		case req.PathValue("first") == "trusted":
			req.SetPathValue("domain", req.PathValue("second"))
			trusted.ServeHTTP(w, req)
		case req.PathValue("second") == "public":
			req.SetPathValue("domain", req.PathValue("first"))
			public.ServeHTTP(w, req)
		default:
			http.NotFound(w, req)
		}
	})
	r.Mux.Handle("GET /v1/canary/{domain}/warrant/{page}", http.HandlerFunc(h.HandlePublishedWarrant))

	// Verification does an outbound DNS lookup per call.
	r.Mux.Handle("POST /v1/canary/{domain}/verify", r.secured(h.HandleVerify, httpx.StrictLimit))
	r.Mux.Handle("DELETE /v1/canary/{domain}", r.secured(h.HandleDelete, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/canary/{domain}/logo", r.secured(h.HandleLogo, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/canary/{domain}/warrant", r.secured(h.HandleCreateWarrant, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/canary/{domain}/warrant/{id}/publish", r.secured(h.HandlePublishWarrant, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/canary/{domain}/subscribe", r.secured(h.HandleSubscribe, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/canary/{domain}/subscribe", r.secured(h.HandleUnsubscribe, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/canary/{domain}/subscribed", r.secured(h.HandleSubscribed, httpx.GlobalLimit))
	r.Mux.Handle("POST /v1/canary/{domain}/trust", r.secured(h.HandleTrust, httpx.ModerateLimit))
}

func (r *Router) registerSurvey() {
	h := &SurveyHandler{Surveys: r.SurveyService, SecureCookies: r.secureCookies}

	r.Mux.Handle("POST /v1/survey", r.secured(h.HandleCreate, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/survey/{id}", http.HandlerFunc(h.HandleGet))

	// Submission takes an optional session, so it authenticates inside the
	// handler instead of through RequireSession.
	r.Mux.Handle("POST /v1/survey/{id}/submit",
		httpx.Chain(http.HandlerFunc(h.HandleSubmit),
			httpx.RateLimitByIPAndPath(httpx.ModerateLimit, "id"),
		),
	)

	r.Mux.Handle("POST /v1/survey/{id}/close", r.secured(h.HandleClose, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/survey/{id}/results/{page}", r.secured(h.HandleResults, httpx.GlobalLimit))
	r.Mux.Handle("GET /v1/survey/{id}/events", r.secured(h.HandleEvents, httpx.ModerateLimit))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.cache, r.signer))
}
