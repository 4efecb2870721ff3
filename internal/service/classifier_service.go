package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/uwazi254/uwazi-api/internal/dto"
	"github.com/uwazi254/uwazi-api/internal/models"
	appErrors "github.com/uwazi254/uwazi-api/pkg/errors"
)

const classifierPrompt = `Analyze this citizen issue report and classify it.

Description: %s

Respond with only a JSON object in this exact format, no other text:
{"category": "<one of: roads, water, health, security, corruption, education, environment, housing>", "severity": "<one of: low, medium, high, critical>"}`

// ClassifierConfig configures the generative-language endpoint used for
// advisory classification.
type ClassifierConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// ClassifierService asks an external model to suggest a category and severity
// for a free-text description. Results are advisory only and callers must
// tolerate failure.
type ClassifierService struct {
	config ClassifierConfig
	client *http.Client
	logger *zap.Logger
}

// NewClassifierService creates an instance of ClassifierService.
func NewClassifierService(config ClassifierConfig, logger *zap.Logger) *ClassifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ClassifierService{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type generateContentRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []generatePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type classificationResult struct {
	Category string `json:"category"`
	Severity string `json:"severity"`
}

// Classify returns a category and severity suggestion for the description.
// Any upstream failure surfaces as ErrClassifierUnavailable.
func (s *ClassifierService) Classify(ctx context.Context, description string) (*dto.ClassifySuggestion, error) {
	if s.config.APIKey == "" {
		return nil, appErrors.Clone(appErrors.ErrClassifierUnavailable, "classifier not configured")
	}

	body, err := json.Marshal(generateContentRequest{
		Contents: []generateContent{{
			Parts: []generatePart{{Text: fmt.Sprintf(classifierPrompt, description)}},
		}},
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrClassifierUnavailable.Code, appErrors.ErrClassifierUnavailable.Status, "failed to encode classifier request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(s.config.BaseURL, "/"), s.config.Model, s.config.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrClassifierUnavailable.Code, appErrors.ErrClassifierUnavailable.Status, "failed to build classifier request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("classifier call failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrClassifierUnavailable.Code, appErrors.ErrClassifierUnavailable.Status, "classifier unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		s.logger.Warn("classifier returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", payload))
		return nil, appErrors.Clone(appErrors.ErrClassifierUnavailable, fmt.Sprintf("classifier returned status %d", resp.StatusCode))
	}

	var decoded generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrClassifierUnavailable.Code, appErrors.ErrClassifierUnavailable.Status, "failed to decode classifier response")
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return nil, appErrors.Clone(appErrors.ErrClassifierUnavailable, "classifier returned no candidates")
	}

	result, err := parseClassification(decoded.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		s.logger.Warn("classifier returned unparseable text", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrClassifierUnavailable.Code, appErrors.ErrClassifierUnavailable.Status, "classifier response unparseable")
	}

	return &dto.ClassifySuggestion{
		Category:   result.Category,
		Severity:   result.Severity,
		Confidence: 0.8,
	}, nil
}

// parseClassification extracts the JSON object from the model's text, which
// may arrive wrapped in markdown code fences.
func parseClassification(text string) (*classificationResult, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var result classificationResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parse classification: %w", err)
	}

	result.Category = strings.ToLower(strings.TrimSpace(result.Category))
	result.Severity = strings.ToLower(strings.TrimSpace(result.Severity))

	if !models.ValidCategory(models.IssueCategory(result.Category)) {
		return nil, fmt.Errorf("unknown category %q", result.Category)
	}
	if !models.ValidSeverity(models.IssueSeverity(result.Severity)) {
		return nil, fmt.Errorf("unknown severity %q", result.Severity)
	}
	return &result, nil
}
