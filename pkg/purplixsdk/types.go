package purplixsdk

import "time"

// ============================================================================
// Shared
// ============================================================================

// Sealed is a value encrypted by the client before it reaches the server.
type Sealed struct {
	IV         string `json:"iv"`
	CipherText string `json:"cipher_text"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Cache    string `json:"cache"`
	Signer   string `json:"signer"`
}

// ============================================================================
// Account
// ============================================================================

type KDF struct {
	Salt       string `json:"salt"`
	TimeCost   int    `json:"time_cost"`
	MemoryCost int    `json:"memory_cost"`
}

type Credentials struct {
	KDF           KDF    `json:"kdf"`
	SignPublicKey string `json:"sign_public_key"`
	BoxPublicKey  string `json:"box_public_key"`
	BoxPrivateKey Sealed `json:"box_private_key"`
	Keychain      Sealed `json:"keychain"`
	Signature     string `json:"signature"`
	Algorithms    string `json:"algorithms"`
}

type RegisterRequest struct {
	Email       string      `json:"email"`
	Credentials Credentials `json:"credentials"`
	Captcha     string      `json:"captcha,omitempty"`
}

type RegisterResponse struct {
	User               User   `json:"user"`
	OTPProvisioningURI string `json:"otp_provisioning_uri"`
}

type Notifications struct {
	Email    []string            `json:"email"`
	Push     map[string]string   `json:"push"`
	Webhooks map[string][]string `json:"webhooks"`
}

// User is the account as its owner sees it. OTPSecret is only present until
// OTP setup is completed.
type User struct {
	ID              string        `json:"id"`
	Email           string        `json:"email"`
	EmailVerified   bool          `json:"email_verified"`
	OTPCompleted    bool          `json:"otp_completed"`
	OTPSecret       string        `json:"otp_secret,omitempty"`
	IPLookupConsent bool          `json:"ip_lookup_consent"`
	Credentials     Credentials   `json:"credentials"`
	Notifications   Notifications `json:"notifications"`
	CreatedAt       time.Time     `json:"created_at"`
}

type ChallengeResponse struct {
	ID        string    `json:"id"`
	ToSign    string    `json:"to_sign"`
	ExpiresAt time.Time `json:"expires_at"`
}

type LoginRequest struct {
	ID        string `json:"id"`
	Signature string `json:"signature"`
	OTP       string `json:"otp,omitempty"`
	Captcha   string `json:"captcha,omitempty"`
	OneDay    bool   `json:"one_day,omitempty"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

type OTPRequest struct {
	OTP string `json:"otp"`
}

type OTPResetResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

type ResetCredentialsRequest struct {
	OTP         string      `json:"otp"`
	Credentials Credentials `json:"credentials"`
}

type PushRequest struct {
	Topic string `json:"topic"`
}

type WebhookRequest struct {
	URL string `json:"url"`
}

type SessionLocation struct {
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
	IP      string `json:"ip,omitempty"`
}

type SessionResponse struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Location  SessionLocation `json:"location"`
	Device    string          `json:"device"`
	Current   bool            `json:"current"`
}

// ============================================================================
// Canary
// ============================================================================

type CreateCanaryRequest struct {
	Domain     string `json:"domain"`
	About      string `json:"about"`
	Signature  string `json:"signature"`
	Algorithms string `json:"algorithms"`
	PublicKey  string `json:"public_key"`
	PrivateKey Sealed `json:"private_key"`
}

// Canary is a domain record. PrivateKey and VerifyCode are only returned to
// the owner.
type Canary struct {
	ID         string    `json:"id"`
	Domain     string    `json:"domain"`
	About      string    `json:"about"`
	Signature  string    `json:"signature"`
	Algorithms string    `json:"algorithms"`
	PublicKey  string    `json:"public_key"`
	PrivateKey *Sealed   `json:"private_key,omitempty"`
	VerifyCode string    `json:"verify_code,omitempty"`
	Verified   bool      `json:"verified"`
	Logo       string    `json:"logo,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type LogoResponse struct {
	URL string `json:"url"`
}

type CreateWarrantRequest struct {
	Next string `json:"next"`
	OTP  string `json:"otp"`
}

type PublishWarrantRequest struct {
	Signature      string `json:"signature"`
	BTCLatestBlock string `json:"btc_latest_block"`
	Statement      string `json:"statement"`
	Concern        string `json:"concern"`
}

type Warrant struct {
	ID             string    `json:"id"`
	CanaryID       string    `json:"canary_id"`
	NextCanary     time.Time `json:"next_canary"`
	IssuedAt       time.Time `json:"issued_at"`
	Active         bool      `json:"active"`
	Published      bool      `json:"published"`
	Signature      string    `json:"signature,omitempty"`
	BTCLatestBlock string    `json:"btc_latest_block,omitempty"`
	Statement      string    `json:"statement,omitempty"`
	Concern        string    `json:"concern,omitempty"`
}

type SubscribedResponse struct {
	Subscribed bool `json:"subscribed"`
}

type TrustRequest struct {
	PublicKeyHash string `json:"public_key_hash"`
	Signature     string `json:"signature"`
}

type TrustedCanary struct {
	Domain        string    `json:"domain"`
	PublicKeyHash string    `json:"public_key_hash"`
	Signature     string    `json:"signature"`
	CreatedAt     time.Time `json:"created_at"`
}

// ============================================================================
// Survey
// ============================================================================

type Choice struct {
	ID     int    `json:"id"`
	Choice Sealed `json:"choice"`
}

type Question struct {
	ID          int      `json:"id"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Question    *Sealed  `json:"question,omitempty"`
	Description *Sealed  `json:"description,omitempty"`
	Regex       *Sealed  `json:"regex,omitempty"`
	Choices     []Choice `json:"choices,omitempty"`
}

type CreateSurveyRequest struct {
	Title                    Sealed     `json:"title"`
	Description              *Sealed    `json:"description,omitempty"`
	Questions                []Question `json:"questions"`
	Signature                string     `json:"signature"`
	PublicKey                string     `json:"public_key"`
	RequiresLogin            bool       `json:"requires_login"`
	RequiresCaptcha          bool       `json:"requires_captcha"`
	ProxyBlock               bool       `json:"proxy_block"`
	AllowMultipleSubmissions bool       `json:"allow_multiple_submissions"`
	ClosingAt                *time.Time `json:"closing_at,omitempty"`
	IPKey                    string     `json:"ip_key,omitempty"`
}

type Survey struct {
	ID                       string     `json:"id"`
	Title                    Sealed     `json:"title"`
	Description              *Sealed    `json:"description,omitempty"`
	Questions                []Question `json:"questions"`
	Signature                string     `json:"signature"`
	PublicKey                string     `json:"public_key"`
	RequiresLogin            bool       `json:"requires_login"`
	RequiresCaptcha          bool       `json:"requires_captcha"`
	ProxyBlock               bool       `json:"proxy_block"`
	AllowMultipleSubmissions bool       `json:"allow_multiple_submissions"`
	RequiresIPKey            bool       `json:"requires_ip_key"`
	ClosingAt                *time.Time `json:"closing_at,omitempty"`
	Responses                int        `json:"responses"`
	CreatedAt                time.Time  `json:"created_at"`
}

type SubmitSurveyRequest struct {
	Answers map[int]Sealed `json:"answers"`
	IPKey   string         `json:"ip_key,omitempty"`
	Captcha string         `json:"captcha,omitempty"`
}

type SubmitSurveyResponse struct {
	ID        string `json:"id"`
	Responses int    `json:"responses"`
}

type SurveyAnswer struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	Answers   map[int]Sealed `json:"answers"`
	CreatedAt time.Time      `json:"created_at"`
}

// SubmissionEvent is one message on a survey's live event stream.
type SubmissionEvent struct {
	SurveyID  string         `json:"survey_id"`
	AnswerID  string         `json:"answer_id"`
	Responses int            `json:"responses"`
	CreatedAt time.Time      `json:"created_at"`
	Answers   map[int]Sealed `json:"answers,omitempty"`
}
