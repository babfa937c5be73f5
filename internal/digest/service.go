package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/accionlabs/intelhub/internal/gemini"
	"github.com/accionlabs/intelhub/internal/models"
	"github.com/accionlabs/intelhub/internal/retry"
)

// ErrEmptyCompany is returned when no company name is given.
var ErrEmptyCompany = errors.New("company name is required")

var factsSchema = &gemini.Schema{
	Type: "OBJECT",
	Properties: map[string]*gemini.Schema{
		"facts": {Type: "ARRAY", Items: &gemini.Schema{Type: "STRING"}},
	},
}

// Service generates digests and facts through a model Generator.
type Service struct {
	gen    gemini.Generator
	policy retry.Policy
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used to stamp digests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a digest service. policy.Logger defaults to logger.
func NewService(gen gemini.Generator, policy retry.Policy, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}
	s := &Service{gen: gen, policy: policy, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateDigest asks the model, with search grounding, for a digest of company and normalizes it.
// Failures are the model API error after retries, ErrNoJSONObject or ErrMalformedResponse.
func (s *Service) GenerateDigest(ctx context.Context, company string) (*models.Digest, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, ErrEmptyCompany
	}

	req := &gemini.Request{Prompt: digestPrompt(company), GoogleSearch: true}
	start := time.Now()
	resp, err := retry.Do(ctx, s.policy, func(ctx context.Context) (*gemini.Response, error) {
		return s.gen.Generate(ctx, req)
	})
	if err != nil {
		s.logger.Error("digest generation failed", zap.String("company", company), zap.Error(err))
		return nil, fmt.Errorf("failed to generate digest for %s: %w", company, err)
	}

	grounding := make([]models.Source, 0, len(resp.Sources))
	for _, src := range resp.Sources {
		grounding = append(grounding, models.Source{Link: src.URI, Title: src.Title})
	}
	d, err := Normalize(company, resp.Text, grounding, s.now())
	if err != nil {
		s.logger.Error("digest normalization failed",
			zap.String("company", company),
			zap.String("finish_reason", resp.FinishReason),
			zap.String("block_reason", resp.BlockReason),
			zap.Error(err))
		return nil, fmt.Errorf("failed to generate digest for %s: %w", company, err)
	}

	s.logger.Info("digest generated",
		zap.String("id", d.ID),
		zap.Int("sources", len(d.Sources)),
		zap.Int("open_positions", len(d.OpenPositions)),
		zap.Duration("elapsed", time.Since(start)))
	return d, nil
}

// GenerateFacts returns short trivia about company. It never fails: any error yields an empty list.
func (s *Service) GenerateFacts(ctx context.Context, company string) []string {
	facts := []string{}
	company = strings.TrimSpace(company)
	if company == "" {
		return facts
	}

	req := &gemini.Request{Prompt: factsPrompt(company), ResponseSchema: factsSchema}
	resp, err := retry.Do(ctx, s.policy, func(ctx context.Context) (*gemini.Response, error) {
		return s.gen.Generate(ctx, req)
	})
	if err != nil {
		s.logger.Warn("fact generation failed", zap.String("company", company), zap.Error(err))
		return facts
	}

	var parsed struct {
		Facts []string `json:"facts"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Text)), &parsed); err != nil {
		s.logger.Warn("fact response not parseable", zap.String("company", company), zap.Error(err))
		return facts
	}
	for _, f := range parsed.Facts {
		if f = CleanupText(f); f != "" {
			facts = append(facts, f)
		}
	}
	return facts
}
