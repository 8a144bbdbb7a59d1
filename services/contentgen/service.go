// Package contentgen forwards content-generation prompts to a chat-completions provider.
package contentgen

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/mistrzwujo098/quiz-sub001/core"
)

var ErrNotConfigured = errors.New("content generation is not configured")

type Request struct {
	Prompt      string   `json:"prompt" validate:"required"`
	System      string   `json:"system,omitempty"`
	MaxTokens   int      `json:"maxTokens,omitempty" validate:"gte=0"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Tokens  int    `json:"tokens"`
}

type Service interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// provider wire format
type (
	message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	completionRequest struct {
		Model       string    `json:"model"`
		Messages    []message `json:"messages"`
		MaxTokens   int       `json:"max_tokens"`
		Temperature float64   `json:"temperature"`
	}

	completionResponse struct {
		Model   string `json:"model"`
		Choices []struct {
			Message message `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
)

type service struct {
	client      *rest.Client
	url         string
	key         string
	model       string
	maxTokens   int
	temperature float64
}

var _ Service = (*service)(nil) // interface compliance check

func NewService(conf *core.Config) Service {
	return &service{
		client:      &rest.Client{HTTPClient: &http.Client{Timeout: conf.ContentGen.Timeout}},
		url:         conf.ContentGen.URL,
		key:         conf.ContentGen.APIKey,
		model:       conf.ContentGen.Model,
		maxTokens:   conf.ContentGen.MaxTokens,
		temperature: conf.ContentGen.Temperature,
	}
}

func (svc *service) Generate(ctx context.Context, req Request) (*Response, error) {
	if svc.key == "" || svc.url == "" {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(svc.completion(req))
	if err != nil {
		return nil, errors.Wrap(err, "encoding completion request")
	}

	res, err := svc.client.SendWithContext(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: svc.url,
		Headers: map[string]string{
			"Authorization": "Bearer " + svc.key,
			"Content-Type":  "application/json",
		},
		Body: body,
	})
	if err != nil {
		return nil, errors.Wrap(err, "calling content provider")
	}

	var out completionResponse
	decodeErr := json.Unmarshal([]byte(res.Body), &out)
	if res.StatusCode >= http.StatusBadRequest {
		msg := http.StatusText(res.StatusCode)
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return nil, errors.Errorf("content provider: %d %s", res.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, errors.Wrap(decodeErr, "decoding completion response")
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("content provider returned no choices")
	}
	return &Response{
		Content: strings.TrimSpace(out.Choices[0].Message.Content),
		Model:   out.Model,
		Tokens:  out.Usage.TotalTokens,
	}, nil
}

func (svc *service) completion(req Request) completionRequest {
	cr := completionRequest{
		Model:       svc.model,
		MaxTokens:   svc.maxTokens,
		Temperature: svc.temperature,
	}
	if req.MaxTokens > 0 {
		cr.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		cr.Temperature = *req.Temperature
	}
	if req.System != "" {
		cr.Messages = append(cr.Messages, message{Role: "system", Content: req.System})
	}
	cr.Messages = append(cr.Messages, message{Role: "user", Content: req.Prompt})
	return cr
}
