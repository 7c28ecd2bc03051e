package http

import (
	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/service"
	"github.com/purplix/backend/pkg/purplixsdk"
)

// Conversions between wire types and domain types. Handlers never encode a
// domain type directly so the JSON contract lives in one package.

func sealedIn(s purplixsdk.Sealed) domain.Sealed {
	return domain.Sealed{IV: s.IV, CipherText: s.CipherText}
}

func sealedOut(s domain.Sealed) purplixsdk.Sealed {
	return purplixsdk.Sealed{IV: s.IV, CipherText: s.CipherText}
}

func sealedPtrIn(s *purplixsdk.Sealed) *domain.Sealed {
	if s == nil {
		return nil
	}
	v := sealedIn(*s)
	return &v
}

func sealedPtrOut(s *domain.Sealed) *purplixsdk.Sealed {
	if s == nil {
		return nil
	}
	v := sealedOut(*s)
	return &v
}

func credentialsIn(c purplixsdk.Credentials) domain.Credentials {
	return domain.Credentials{
		KDF: domain.KDF{
			Salt:       c.KDF.Salt,
			TimeCost:   c.KDF.TimeCost,
			MemoryCost: c.KDF.MemoryCost,
		},
		SignPublicKey: c.SignPublicKey,
		BoxPublicKey:  c.BoxPublicKey,
		BoxPrivateKey: sealedIn(c.BoxPrivateKey),
		Keychain:      sealedIn(c.Keychain),
		Signature:     c.Signature,
		Algorithms:    c.Algorithms,
	}
}

func kdfOut(k domain.KDF) purplixsdk.KDF {
	return purplixsdk.KDF{Salt: k.Salt, TimeCost: k.TimeCost, MemoryCost: k.MemoryCost}
}

func credentialsOut(c domain.Credentials) purplixsdk.Credentials {
	return purplixsdk.Credentials{
		KDF:           kdfOut(c.KDF),
		SignPublicKey: c.SignPublicKey,
		BoxPublicKey:  c.BoxPublicKey,
		BoxPrivateKey: sealedOut(c.BoxPrivateKey),
		Keychain:      sealedOut(c.Keychain),
		Signature:     c.Signature,
		Algorithms:    c.Algorithms,
	}
}

func notificationsOut(n domain.Notifications) purplixsdk.Notifications {
	out := purplixsdk.Notifications{
		Email:    make([]string, 0, len(n.Email)),
		Push:     make(map[string]string, len(n.Push)),
		Webhooks: make(map[string][]string, len(n.Webhooks)),
	}
	for _, k := range n.Email {
		out.Email = append(out.Email, string(k))
	}
	for k, topic := range n.Push {
		out.Push[string(k)] = topic
	}
	for k, urls := range n.Webhooks {
		out.Webhooks[string(k)] = append([]string(nil), urls...)
	}
	return out
}

// userOut expects an already redacted user.
func userOut(u domain.User) purplixsdk.User {
	return purplixsdk.User{
		ID:              u.ID,
		Email:           u.Email,
		EmailVerified:   u.EmailVerified,
		OTPCompleted:    u.OTPCompleted,
		OTPSecret:       u.OTPSecret,
		IPLookupConsent: u.IPLookupConsent,
		Credentials:     credentialsOut(u.Credentials),
		Notifications:   notificationsOut(u.Notifications),
		CreatedAt:       u.CreatedAt,
	}
}

func sessionOut(s domain.Session, current string) purplixsdk.SessionResponse {
	return purplixsdk.SessionResponse{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		Location: purplixsdk.SessionLocation{
			Region:  s.Location.Region,
			Country: s.Location.Country,
			IP:      s.Location.IP,
		},
		Device:  s.Device,
		Current: s.ID == current,
	}
}

// canaryOut renders c for the public, or for its owner when owner is set.
func canaryOut(c domain.Canary, logoURL string, owner bool) purplixsdk.Canary {
	out := purplixsdk.Canary{
		ID:         c.ID,
		Domain:     c.Domain,
		About:      c.About,
		Signature:  c.Signature,
		Algorithms: c.Algorithms,
		PublicKey:  c.PublicKey,
		Verified:   c.Verified,
		Logo:       logoURL,
		CreatedAt:  c.CreatedAt,
	}
	if owner {
		pk := sealedOut(c.PrivateKey)
		out.PrivateKey = &pk
		if !c.Verified {
			out.VerifyCode = c.VerifyCode
		}
	}
	return out
}

func warrantOut(w domain.Warrant) purplixsdk.Warrant {
	return purplixsdk.Warrant{
		ID:             w.ID,
		CanaryID:       w.CanaryID,
		NextCanary:     w.NextCanary,
		IssuedAt:       w.IssuedAt,
		Active:         w.Active,
		Published:      w.Published,
		Signature:      w.Signature,
		BTCLatestBlock: w.BTCLatestBlock,
		Statement:      w.Statement,
		Concern:        string(w.Concern),
	}
}

func trustedOut(t domain.TrustedCanary) purplixsdk.TrustedCanary {
	return purplixsdk.TrustedCanary{
		Domain:        t.Domain,
		PublicKeyHash: t.PublicKeyHash,
		Signature:     t.Signature,
		CreatedAt:     t.CreatedAt,
	}
}

func questionsIn(qs []purplixsdk.Question) []domain.Question {
	out := make([]domain.Question, 0, len(qs))
	for _, q := range qs {
		dq := domain.Question{
			ID:          q.ID,
			Type:        domain.QuestionType(q.Type),
			Required:    q.Required,
			Question:    sealedPtrIn(q.Question),
			Description: sealedPtrIn(q.Description),
			Regex:       sealedPtrIn(q.Regex),
		}
		for _, c := range q.Choices {
			dq.Choices = append(dq.Choices, domain.Choice{ID: c.ID, Choice: sealedIn(c.Choice)})
		}
		out = append(out, dq)
	}
	return out
}

func questionsOut(qs []domain.Question) []purplixsdk.Question {
	out := make([]purplixsdk.Question, 0, len(qs))
	for _, q := range qs {
		wq := purplixsdk.Question{
			ID:          q.ID,
			Type:        string(q.Type),
			Required:    q.Required,
			Question:    sealedPtrOut(q.Question),
			Description: sealedPtrOut(q.Description),
			Regex:       sealedPtrOut(q.Regex),
		}
		for _, c := range q.Choices {
			wq.Choices = append(wq.Choices, purplixsdk.Choice{ID: c.ID, Choice: sealedOut(c.Choice)})
		}
		out = append(out, wq)
	}
	return out
}

func surveyParamsIn(req purplixsdk.CreateSurveyRequest) service.CreateSurveyParams {
	return service.CreateSurveyParams{
		Title:                    sealedIn(req.Title),
		Description:              sealedPtrIn(req.Description),
		Questions:                questionsIn(req.Questions),
		Signature:                req.Signature,
		PublicKey:                req.PublicKey,
		RequiresLogin:            req.RequiresLogin,
		RequiresCaptcha:          req.RequiresCaptcha,
		ProxyBlock:               req.ProxyBlock,
		AllowMultipleSubmissions: req.AllowMultipleSubmissions,
		ClosingAt:                req.ClosingAt,
		IPKey:                    req.IPKey,
	}
}

func surveyOut(s domain.Survey) purplixsdk.Survey {
	return purplixsdk.Survey{
		ID:                       s.ID,
		Title:                    sealedOut(s.Title),
		Description:              sealedPtrOut(s.Description),
		Questions:                questionsOut(s.Questions),
		Signature:                s.Signature,
		PublicKey:                s.PublicKey,
		RequiresLogin:            s.RequiresLogin,
		RequiresCaptcha:          s.RequiresCaptcha,
		ProxyBlock:               s.ProxyBlock,
		AllowMultipleSubmissions: s.AllowMultipleSubmissions,
		RequiresIPKey:            s.IPKeyHash != "",
		ClosingAt:                s.ClosingAt,
		Responses:                s.Responses,
		CreatedAt:                s.CreatedAt,
	}
}

func answersIn(in map[int]purplixsdk.Sealed) domain.Answers {
	out := make(domain.Answers, len(in))
	for id, v := range in {
		out[id] = sealedIn(v)
	}
	return out
}

func answersOut(in domain.Answers) map[int]purplixsdk.Sealed {
	out := make(map[int]purplixsdk.Sealed, len(in))
	for id, v := range in {
		out[id] = sealedOut(v)
	}
	return out
}

func answerOut(a domain.SurveyAnswer) purplixsdk.SurveyAnswer {
	return purplixsdk.SurveyAnswer{
		ID:        a.ID,
		UserID:    a.UserID,
		Answers:   answersOut(a.Answers),
		CreatedAt: a.CreatedAt,
	}
}
