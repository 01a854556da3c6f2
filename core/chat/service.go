// Package chat answers study questions through an AI completion provider.
package chat

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnsmart/core"
)

const SystemPrompt = "You are a helpful AI study assistant for the LearnSmart e-learning platform. " +
	"You help students with their academic questions, explain concepts, and provide learning guidance. " +
	"Keep your answers educational, accurate, and helpful."

type (
	// Completer runs a single-turn chat completion.
	Completer interface {
		Complete(ctx context.Context, systemPrompt, question string) (string, error)
	}

	Question struct {
		Question string `json:"question" validate:"required"`
	}

	Answer struct {
		Response string `json:"response"`
	}

	Service struct {
		completer Completer
	}
)

func (q *Question) Validate(validate *validator.Validate) error {
	q.Question = core.CleanString(q.Question)
	if err := validate.Struct(q); err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "question", Error: "Question is required"})
	}
	return nil
}

func NewService(completer Completer) *Service {
	return &Service{completer: completer}
}

// Ask sends q to the completion provider under the study-assistant prompt.
func (svc *Service) Ask(ctx context.Context, q Question) (Answer, error) {
	resp, err := svc.completer.Complete(ctx, SystemPrompt, q.Question)
	if err != nil {
		if _, ok := core.AsUpstream(err); ok {
			return Answer{}, err
		}
		return Answer{}, core.NewUpstreamError("ai", "Failed to get response from AI", err)
	}
	return Answer{Response: resp}, nil
}
