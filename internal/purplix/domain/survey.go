package domain

import (
	"encoding/json"
	"time"
)

// QuestionType is the kind of input a survey question expects.
type QuestionType string

const (
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionParagraph      QuestionType = "paragraph"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionCheckboxes     QuestionType = "checkboxes"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionShortAnswer, QuestionParagraph, QuestionMultipleChoice, QuestionSingleChoice, QuestionCheckboxes:
		return true
	}
	return false
}

const (
	MaxSurveyQuestions = 128
	MaxQuestionChoices = 56
)

// Choice is one selectable option. Its text is client-encrypted.
type Choice struct {
	ID     int    `json:"id"`
	Choice Sealed `json:"choice"`
}

// Question text, description and regex are client-encrypted.
type Question struct {
	ID          int          `json:"id"`
	Type        QuestionType `json:"type"`
	Required    bool         `json:"required"`
	Question    *Sealed      `json:"question,omitempty"`
	Description *Sealed      `json:"description,omitempty"`
	Regex       *Sealed      `json:"regex,omitempty"`
	Choices     []Choice     `json:"choices,omitempty"`
}

type Survey struct {
	ID                       string
	UserID                   string
	Title                    Sealed
	Description              *Sealed
	Questions                []Question
	Signature                string
	PublicKey                string // X25519 key respondents seal answers to
	RequiresLogin            bool
	RequiresCaptcha          bool
	ProxyBlock               bool
	AllowMultipleSubmissions bool
	Closed                   bool
	ClosingAt                *time.Time
	IPKeyHash                string // argon2id PHC of the IP dedupe key, empty when disabled
	Responses                int
	CreatedAt                time.Time
}

// IsClosed reports whether the survey stopped accepting submissions at now.
func (s Survey) IsClosed(now time.Time) bool {
	if s.Closed {
		return true
	}
	return s.ClosingAt != nil && !now.Before(*s.ClosingAt)
}

// Answers maps question id to the client-encrypted answer.
type Answers map[int]Sealed

// SurveyAnswer is one stored submission.
type SurveyAnswer struct {
	ID        string
	SurveyID  string
	UserID    string // empty for anonymous submissions
	Answers   Answers
	CreatedAt time.Time
}

// SurveyBlocker records that an HMACed address already submitted.
type SurveyBlocker struct {
	SurveyID  string
	IPHMAC    string
	ExpiresAt time.Time
}

// SubmissionEvent is published to the owner's live stream after a submission.
type SubmissionEvent struct {
	SurveyID  string          `json:"survey_id"`
	AnswerID  string          `json:"answer_id"`
	Responses int             `json:"responses"`
	CreatedAt time.Time       `json:"created_at"`
	Answers   json.RawMessage `json:"answers,omitempty"`
}
