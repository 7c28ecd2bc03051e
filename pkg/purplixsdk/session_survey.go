package purplixsdk

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

func surveyPath(id string) string {
	return "/v1/survey/" + url.PathEscape(id)
}

// Survey returns an open survey.
func (c *Client) Survey(ctx context.Context, id string) (*Survey, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, surveyPath(id), "", nil, nil)
	if err != nil {
		return nil, err
	}

	var out Survey
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitSurvey answers a survey anonymously. The client's cookie jar keeps
// the anti-duplicate cookie the server sets.
func (c *Client) SubmitSurvey(ctx context.Context, id string, req SubmitSurveyRequest) (*SubmitSurveyResponse, error) {
	return c.submit(ctx, id, "", req)
}

// SubmitSurvey answers a survey as the signed-in account.
func (s *Session) SubmitSurvey(ctx context.Context, id string, req SubmitSurveyRequest) (*SubmitSurveyResponse, error) {
	return s.client.submit(ctx, id, s.token, req)
}

func (c *Client) submit(ctx context.Context, id, token string, req SubmitSurveyRequest) (*SubmitSurveyResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, surveyPath(id)+"/submit", token, req)
	if err != nil {
		return nil, err
	}

	var out SubmitSurveyResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) CreateSurvey(ctx context.Context, req CreateSurveyRequest) (*Survey, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/survey", req)
	if err != nil {
		return nil, err
	}

	var out Survey
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) CloseSurvey(ctx context.Context, id string) error {
	return s.noContent(ctx, http.MethodPost, surveyPath(id)+"/close", nil)
}

// SurveyResult returns the page-th submission, newest first.
func (s *Session) SurveyResult(ctx context.Context, id string, page int) (*SurveyAnswer, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, surveyPath(id)+"/results/"+strconv.Itoa(page), nil, nil)
	if err != nil {
		return nil, err
	}

	var out SurveyAnswer
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// SurveyEvents streams new submissions until ctx is cancelled or the server
// ends the stream. The client's timeout applies to the whole stream, so use
// a Client without one for long-lived listeners.
func (s *Session) SurveyEvents(ctx context.Context, id string) (<-chan SubmissionEvent, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, surveyPath(id)+"/events", nil, map[string]string{
		"Accept": "text/event-stream",
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, checkStatusNoContent(resp)
	}

	out := make(chan SubmissionEvent)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var ev SubmissionEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
