package generation

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oakmind/oakmind-backend/internal/pkg/envutil"
	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

// Client is the external-generator boundary: a pure call from prompts to raw
// text. It owns model, token-limit and timeout configuration and nothing
// else. Deliberately no retries here: re-running a paid generative call is
// the broker's decision, made visibly with a bounded policy.
type Client interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type openAIClient struct {
	log       *logger.Logger
	api       *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
	jsonMode  bool
}

func NewOpenAIClient(log *logger.Logger) (Client, error) {
	apiKey := envutil.GetEnv("OPENAI_API_KEY", "", nil)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	cfg := openai.DefaultConfig(apiKey)
	if base := envutil.GetEnv("OPENAI_BASE_URL", "", log); base != "" {
		cfg.BaseURL = base
	}

	timeoutSec := envutil.GetEnvAsInt("GENERATOR_TIMEOUT_SECONDS", 60, log)

	return &openAIClient{
		log:       log.With("service", "GeneratorClient"),
		api:       openai.NewClientWithConfig(cfg),
		model:     envutil.GetEnv("GENERATOR_MODEL", openai.GPT4oMini, log),
		maxTokens: envutil.GetEnvAsInt("GENERATOR_MAX_OUTPUT_TOKENS", 4096, log),
		timeout:   time.Duration(timeoutSec) * time.Second,
		jsonMode:  envutil.GetEnvAsBool("GENERATOR_JSON_MODE", true, log),
	}, nil
}

func (c *openAIClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		// Timeout, quota and transport failures all collapse into the same
		// retryable class; the broker does not care which one it was.
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrGenerationUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}
