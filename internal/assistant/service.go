package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tallybook/tallybook/internal/intent"
	"github.com/tallybook/tallybook/internal/ledger"
	"github.com/tallybook/tallybook/internal/llm"
	"github.com/tallybook/tallybook/internal/observability"
	"github.com/tallybook/tallybook/internal/prompt"
	"github.com/tallybook/tallybook/internal/query"
)

var (
	ErrEmptyQuestion    = errors.New("question is required")
	ErrQuestionTooLong  = errors.New("question is too long")
	ErrModelUnavailable = errors.New("language model unavailable")
)

const (
	defaultMaxQuestionLength = 1000
	defaultAnswerRowLimit    = 50
	maxExplanationRunes      = 500
)

type Kind string

const (
	KindAnswered  Kind = "answered"
	KindNonAnswer Kind = "non_answer"
	KindRejected  Kind = "rejected"
	KindFailed    Kind = "failed"
)

// Outcome describes how one question ended. Reason is only set for non-answers
// and rejections and is meant for logs and metrics. ModelMessage is only set
// for non-answers and is the model's own text.
type Outcome struct {
	QuestionID   string
	Kind         Kind
	Reason       intent.Reason
	ModelMessage string
	Answer       string
	Explanation  string
	Entity       string
	Operation    string
	RowCount     int
	Rows         []ledger.Record
}

type Executor interface {
	Execute(ctx context.Context, validated intent.ValidatedIntent) query.Result
}

type Config struct {
	MaxQuestionLength int
	AnswerRowLimit    int
}

type Service struct {
	model    llm.Model
	executor Executor
	logger   *slog.Logger
	cfg      Config
}

func NewService(model llm.Model, executor Executor, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxQuestionLength <= 0 {
		cfg.MaxQuestionLength = defaultMaxQuestionLength
	}
	if cfg.AnswerRowLimit <= 0 {
		cfg.AnswerRowLimit = defaultAnswerRowLimit
	}
	return &Service{model: model, executor: executor, logger: logger, cfg: cfg}
}

// Ask answers one question for one tenant. A non-nil error means the question
// could not be processed at all: invalid input or a model transport failure.
// Rejections and execution failures are reported through Outcome.Kind.
func (s *Service) Ask(ctx context.Context, tenant intent.Tenant, question string) (Outcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Outcome{}, ErrEmptyQuestion
	}
	if utf8.RuneCountInString(question) > s.cfg.MaxQuestionLength {
		return Outcome{}, fmt.Errorf("%w: limit is %d characters", ErrQuestionTooLong, s.cfg.MaxQuestionLength)
	}

	outcome := Outcome{QuestionID: uuid.NewString()}
	logger := s.logger.With(
		"question_id", outcome.QuestionID,
		"tenant_id", tenant.TenantID,
		"trace_id", observability.TraceIDFromContext(ctx),
	)

	completion, err := s.complete(ctx, "intent", prompt.IntentPrompt(tenant, question))
	if err != nil {
		logger.Error("intent completion failed", "error", err)
		observability.ObserveQuestion("model_error")
		return outcome, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	raw, err := intent.Parse(completion.Content)
	if err == nil {
		var validated intent.ValidatedIntent
		validated, err = intent.Validate(raw, tenant)
		if err == nil {
			return s.execute(ctx, logger, outcome, tenant, question, validated)
		}
	}

	rejection, ok := intent.AsRejection(err)
	if !ok {
		logger.Error("intent handling failed", "error", err)
		outcome.Kind = KindFailed
		observability.ObserveQuestion(string(outcome.Kind))
		return outcome, nil
	}
	outcome.Reason = rejection.Reason
	outcome.Entity = raw.Entity
	outcome.Operation = raw.Operation
	if rejection.Bucket() == intent.BucketNonAnswer {
		outcome.Kind = KindNonAnswer
		outcome.ModelMessage = rejection.Message
		logger.Info("model declined question", "reason", rejection.Reason)
	} else {
		outcome.Kind = KindRejected
		observability.IncrementIntentRejection(string(rejection.Reason))
		logger.Warn("intent rejected", "reason", rejection.Reason, "message", rejection.Message, "detail", rejection.Detail)
	}
	observability.ObserveQuestion(string(outcome.Kind))
	return outcome, nil
}

func (s *Service) execute(ctx context.Context, logger *slog.Logger, outcome Outcome, tenant intent.Tenant, question string, validated intent.ValidatedIntent) (Outcome, error) {
	outcome.Entity = validated.Entity().String()
	outcome.Operation = validated.Operation().String()
	outcome.Explanation = SanitizeExplanation(validated.Explanation())

	result := s.executor.Execute(ctx, validated)
	if !result.Success {
		logger.Error("query execution failed", "entity", outcome.Entity, "operation", outcome.Operation, "error", result.Error)
		outcome.Kind = KindFailed
		observability.ObserveQuestion(string(outcome.Kind))
		return outcome, nil
	}
	outcome.Rows = result.Data
	outcome.RowCount = len(result.Data)

	shown := result
	if len(shown.Data) > s.cfg.AnswerRowLimit {
		shown = query.Succeeded(shown.Data[:s.cfg.AnswerRowLimit])
	}
	answerPrompt, err := prompt.AnswerPrompt(question, tenant, outcome.Explanation, shown)
	if err != nil {
		logger.Error("render answer prompt failed", "error", err)
		outcome.Kind = KindFailed
		observability.ObserveQuestion(string(outcome.Kind))
		return outcome, nil
	}

	completion, err := s.complete(ctx, "answer", answerPrompt)
	if err != nil {
		logger.Error("answer completion failed", "error", err)
		observability.ObserveQuestion("model_error")
		return outcome, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	outcome.Kind = KindAnswered
	outcome.Answer = completion.Content
	logger.Info("question answered", "entity", outcome.Entity, "operation", outcome.Operation, "rows", outcome.RowCount)
	observability.ObserveQuestion(string(outcome.Kind))
	return outcome, nil
}

func (s *Service) complete(ctx context.Context, stage string, p prompt.Prompt) (llm.Completion, error) {
	if s.model == nil {
		return llm.Completion{}, fmt.Errorf("no language model configured")
	}
	start := time.Now()
	completion, err := s.model.Complete(ctx, p)
	observability.ObserveModelRequest(stage, time.Since(start), err)
	return completion, err
}

// SanitizeExplanation strips control characters from the model's explanation
// and caps its length before it is shown to a user.
func SanitizeExplanation(value string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		case r == '\u200b' || r == '\u202e' || (r >= '\u2066' && r <= '\u2069'):
			return -1
		default:
			return r
		}
	}, value)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if utf8.RuneCountInString(cleaned) > maxExplanationRunes {
		cleaned = string([]rune(cleaned)[:maxExplanationRunes])
	}
	return cleaned
}
