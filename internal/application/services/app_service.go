package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/apiclient"
)

// AppAPI is the part of the API connector behind the /app routes
type AppAPI interface {
	Questions(ctx context.Context) (json.RawMessage, error)
	Countries(ctx context.Context) (json.RawMessage, error)
	Guide(ctx context.Context, country string) (json.RawMessage, error)
	CalculateScore(ctx context.Context, answers json.RawMessage) (json.RawMessage, error)
	AnalyzeCareer(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
	CareerProfiles(ctx context.Context) (json.RawMessage, error)
	SkillMatches(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
	UserProfile(ctx context.Context) (json.RawMessage, error)
	UserSession(ctx context.Context) (json.RawMessage, error)
	UpdatePreferences(ctx context.Context, prefs json.RawMessage) (json.RawMessage, error)
	UserHistory(ctx context.Context) (json.RawMessage, error)
	BatchRequest(ctx context.Context, items []apiclient.BatchItem) []apiclient.BatchResult
}

// AppService proxies the scoring, career and user routes to the backend
type AppService struct {
	api AppAPI
}

// NewAppService creates a new app passthrough service
func NewAppService(api AppAPI) *AppService {
	return &AppService{api: api}
}

func (s *AppService) Questions(ctx context.Context) (json.RawMessage, error) {
	return s.api.Questions(ctx)
}

func (s *AppService) Countries(ctx context.Context) (json.RawMessage, error) {
	return s.api.Countries(ctx)
}

func (s *AppService) Guide(ctx context.Context, country string) (json.RawMessage, error) {
	if country == "" {
		return nil, &apiclient.ValidationError{Field: "country", Message: "is required"}
	}
	return s.api.Guide(ctx, country)
}

func (s *AppService) CalculateScore(ctx context.Context, answers json.RawMessage) (json.RawMessage, error) {
	if err := requireJSON("answers", answers); err != nil {
		return nil, err
	}
	return s.api.CalculateScore(ctx, answers)
}

func (s *AppService) AnalyzeCareer(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	if err := requireJSON("payload", payload); err != nil {
		return nil, err
	}
	return s.api.AnalyzeCareer(ctx, payload)
}

func (s *AppService) CareerProfiles(ctx context.Context) (json.RawMessage, error) {
	return s.api.CareerProfiles(ctx)
}

func (s *AppService) SkillMatches(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	if err := requireJSON("payload", payload); err != nil {
		return nil, err
	}
	return s.api.SkillMatches(ctx, payload)
}

func (s *AppService) UserProfile(ctx context.Context) (json.RawMessage, error) {
	return s.api.UserProfile(ctx)
}

func (s *AppService) UserSession(ctx context.Context) (json.RawMessage, error) {
	return s.api.UserSession(ctx)
}

func (s *AppService) UpdatePreferences(ctx context.Context, prefs json.RawMessage) (json.RawMessage, error) {
	if err := requireJSON("preferences", prefs); err != nil {
		return nil, err
	}
	return s.api.UpdatePreferences(ctx, prefs)
}

func (s *AppService) UserHistory(ctx context.Context) (json.RawMessage, error) {
	return s.api.UserHistory(ctx)
}

// Bootstrap loads the questionnaire, the country catalogue and the career
// profiles in one round trip. Each part may carry its own inline error.
func (s *AppService) Bootstrap(ctx context.Context) map[string]apiclient.BatchResult {
	names := []string{"questions", "countries", "careerProfiles"}
	results := s.api.BatchRequest(ctx, []apiclient.BatchItem{
		{Endpoint: apiclient.PathQuestions},
		{Endpoint: apiclient.PathCountries},
		{Endpoint: apiclient.PathCareerProfiles},
	})
	out := make(map[string]apiclient.BatchResult, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

func requireJSON(field string, body json.RawMessage) error {
	if len(body) == 0 {
		return &apiclient.ValidationError{Field: field, Message: "is required"}
	}
	if !json.Valid(body) {
		return &apiclient.ValidationError{Field: field, Message: fmt.Sprintf("must be valid JSON (%d bytes received)", len(body))}
	}
	return nil
}
