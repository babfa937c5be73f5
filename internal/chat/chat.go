// Package chat answers natural-language questions about tabular datasets through the model API.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/accionlabs/intelhub/internal/dataset"
	"github.com/accionlabs/intelhub/internal/gemini"
	"github.com/accionlabs/intelhub/internal/models"
	"github.com/accionlabs/intelhub/internal/retry"
)

// DefaultMaxRows bounds the rows sent with a question.
const DefaultMaxRows = 500

var (
	ErrEmptyQuestion = errors.New("question is required")
	ErrNoData        = errors.New("no data loaded")
	// ErrBlocked means the model refused the prompt or stopped its answer for safety reasons.
	ErrBlocked = errors.New("request was blocked by the model's safety filters")
	// ErrEmptyResponse means the model returned no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// blockedFinishReasons are candidate finish reasons that mean the answer was withheld.
var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"PROHIBITED_CONTENT": true,
	"BLOCKLIST":          true,
	"SPII":               true,
}

// Service asks questions about datasets.
type Service struct {
	gen     gemini.Generator
	policy  retry.Policy
	logger  *zap.Logger
	maxRows int
}

// NewService creates a chat service. maxRows <= 0 uses DefaultMaxRows.
func NewService(gen gemini.Generator, policy retry.Policy, maxRows int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Service{gen: gen, policy: policy, logger: logger, maxRows: maxRows}
}

// Chat answers question from the rows of ds. The answer is Markdown.
// Datasets over the row limit are truncated and the model is told so.
func (s *Service) Chat(ctx context.Context, question string, ds *models.Dataset, description, systemInstruction string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if ds.Len() == 0 {
		return "", ErrNoData
	}

	rows, truncated := dataset.Sample(ds.Rows, s.maxRows)
	if truncated {
		s.logger.Info("dataset truncated for prompt",
			zap.String("dataset", ds.Name),
			zap.Int("sent", len(rows)),
			zap.Int("total", ds.Len()))
	}
	prompt, err := chatPrompt(question, describe(description, ds), rows, ds.Len())
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := s.generate(ctx, &gemini.Request{Prompt: prompt, SystemInstruction: systemInstruction})
	if err != nil {
		return "", err
	}
	answer, err := answerText(resp)
	if err != nil {
		s.logger.Warn("chat answer rejected",
			zap.String("finish_reason", resp.FinishReason),
			zap.String("block_reason", resp.BlockReason),
			zap.Error(err))
		return "", err
	}
	s.logger.Debug("chat answered",
		zap.String("dataset", ds.Name),
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", time.Since(start)))
	return answer, nil
}

// Summarize returns a one-paragraph summary of the first rows of ds, or SummaryPlaceholder on any error.
func (s *Service) Summarize(ctx context.Context, ds *models.Dataset, description string) string {
	if ds.Len() == 0 {
		return SummaryPlaceholder
	}
	rows, _ := dataset.Sample(ds.Rows, SummarySampleRows)
	prompt, err := summaryPrompt(describe(description, ds), rows)
	if err != nil {
		s.logger.Warn("summary prompt failed", zap.Error(err))
		return SummaryPlaceholder
	}
	resp, err := s.generate(ctx, &gemini.Request{Prompt: prompt})
	if err != nil {
		s.logger.Warn("summary generation failed", zap.Error(err))
		return SummaryPlaceholder
	}
	text, err := answerText(resp)
	if err != nil {
		s.logger.Warn("summary rejected", zap.Error(err))
		return SummaryPlaceholder
	}
	return text
}

func (s *Service) generate(ctx context.Context, req *gemini.Request) (*gemini.Response, error) {
	resp, err := retry.Do(ctx, s.policy, func(ctx context.Context) (*gemini.Response, error) {
		return s.gen.Generate(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query model: %w", err)
	}
	return resp, nil
}

func answerText(resp *gemini.Response) (string, error) {
	if resp.BlockReason != "" || blockedFinishReasons[resp.FinishReason] {
		return "", ErrBlocked
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func describe(description string, ds *models.Dataset) string {
	if d := strings.TrimSpace(description); d != "" {
		return d
	}
	if ds != nil && ds.Name != "" {
		return "the uploaded file " + ds.Name
	}
	return "the uploaded data"
}
