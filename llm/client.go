package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/claimlens/config"
	"github.com/maastricht-university/claimlens/retry"
)

// CodeToolUseFailed is returned by OpenAI-compatible providers when the model
// emits a malformed tool call. A fresh sample usually succeeds.
const CodeToolUseFailed = "tool_use_failed"

// Client wraps a chat completion endpoint with the retry policy.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	policy      retry.Policy
	log         logrus.FieldLogger
}

func New(c config.LLM, p retry.Policy, log logrus.FieldLogger) *Client {
	oc := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		oc.BaseURL = c.BaseURL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	p.Retryable = retryable
	if p.Log == nil {
		p.Log = log
	}
	return &Client{
		api:         openai.NewClientWithConfig(oc),
		model:       c.Model,
		temperature: c.Temperature,
		policy:      p,
		log:         log,
	}
}

func retryable(err error) bool {
	return IsToolUseFailed(err) || retry.Retryable(err)
}

// IsToolUseFailed reports whether err is a rejected tool call from the provider.
func IsToolUseFailed(err error) bool {
	var ae *openai.APIError
	if errors.As(err, &ae) {
		return fmt.Sprint(ae.Code) == CodeToolUseFailed
	}
	return false
}

// chat sends one completion request and returns the first choice.
func (c *Client) chat(ctx context.Context, op string, req openai.ChatCompletionRequest) (openai.ChatCompletionMessage, error) {
	req.Model = c.model
	req.Temperature = c.temperature
	return retry.Do(ctx, c.policy, op, func(ctx context.Context) (openai.ChatCompletionMessage, error) {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return openai.ChatCompletionMessage{}, err
		}
		if len(resp.Choices) == 0 {
			return openai.ChatCompletionMessage{}, retry.Transient(errors.New("empty completion"))
		}
		return resp.Choices[0].Message, nil
	})
}
