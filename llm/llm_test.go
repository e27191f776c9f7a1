package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lambdaforge/lambdaforge/extract"
	"github.com/lambdaforge/lambdaforge/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) GetCompletion(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

var params = PromptParams{
	ProjectName:     "pankaj-devops-lambda",
	Region:          "ap-south-1",
	Runtime:         "nodejs18.x",
	StateBucket:     "pankaj-devops-lambda-tfstate-1a2b3c4d",
	LockTable:       "pankaj-devops-lambda-tf-lock-1a2b3c4d",
	FunctionMessage: "My name is pankaj",
}

func TestPrompts(t *testing.T) {
	backend := BackendPrompt(params)
	assert.Contains(t, backend, params.StateBucket)
	assert.Contains(t, backend, params.LockTable)
	assert.Contains(t, backend, "### backend-bootstrap/backend.tf hcl\n```hcl\n")

	core := CoreInfraPrompt(params)
	assert.Contains(t, core, "### main.tf hcl")
	assert.Contains(t, core, "### variables.tf hcl")
	assert.Contains(t, core, "default: ap-south-1")
	assert.Contains(t, core, "pankaj-devops-lambda-lambda-code-${data.aws_caller_identity.current.account_id}")

	update := ComputeUpdatePrompt(params, "resource \"aws_vpc\" \"main\" {}\n")
	assert.Contains(t, update, "```hcl\nresource \"aws_vpc\" \"main\" {}\n```")
	assert.Contains(t, update, "Runtime: nodejs18.x")
	assert.Contains(t, update, "### src/index.js javascript")
	assert.Contains(t, update, "### src/package.json json")
	assert.Contains(t, update, "${aws_s3_bucket.lambda_code_bucket.id}")

	wf := WorkflowPrompt(params)
	assert.Contains(t, wf, "### .github/workflows/deploy.yml yaml")
	assert.Contains(t, wf, "${{ secrets.AWS_ACCOUNT_ID }}")
	assert.NotContains(t, wf, "%!")
}

func TestGenerateFiles(t *testing.T) {
	reply := "### main.tf hcl\n```hcl\nresource \"a\" \"b\" {}\n```\n"
	client := new(MockLLM)
	client.On("GetCompletion", mock.Anything, "prompt").Return(reply, nil).Once()

	got, blocks, err := GenerateFiles(context.Background(), client, "prompt", map[string]string{"main.tf": "hcl", "variables.tf": "hcl"})
	require.NoError(t, err)
	assert.Equal(t, reply, got)
	assert.Equal(t, extract.Block{Path: "main.tf", Tag: "hcl", Content: "resource \"a\" \"b\" {}", Found: true}, blocks["main.tf"])
	assert.False(t, blocks["variables.tf"].Found)
	client.AssertExpectations(t)
}

func TestGenerate_Errors(t *testing.T) {
	client := new(MockLLM)
	client.On("GetCompletion", mock.Anything, "a").Return("", errors.New("boom")).Once()
	client.On("GetCompletion", mock.Anything, "b").Return("", nil).Once()

	_, err := Generate(context.Background(), client, "a")
	assert.ErrorContains(t, err, "boom")
	_, err = Generate(context.Background(), client, "b")
	assert.Error(t, err)
}

func TestNewClient_Selection(t *testing.T) {
	_, err := NewClient(&LlmConfig{Provider: "cohere", APIKey: "k"}, nil)
	assert.Error(t, err)

	_, err = NewClient(&LlmConfig{Provider: "openai"}, nil)
	assert.Error(t, err)

	c, err := NewClient(&LlmConfig{Provider: "openrouter", APIKey: "k", BaseURL: "https://openrouter.ai/api/v1"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = NewClient(&LlmConfig{Provider: "anthropic", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)
}

func TestOpenAIClient_Completion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(&LlmConfig{Provider: "openai", APIKey: "sk-test", ModelName: "gpt-4o", BaseURL: srv.URL + "/v1"}, logger.NewNullLogger())
	require.NoError(t, err)

	res, err := c.GetCompletion(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", res)
}

func TestOpenAIClient_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(&LlmConfig{Provider: "openrouter", APIKey: "bad", ModelName: "m", BaseURL: srv.URL}, logger.NewNullLogger())
	require.NoError(t, err)

	_, err = c.GetCompletion(context.Background(), "hi")
	assert.EqualError(t, err, "unauthorized: invalid OpenRouter API key")
}

func TestAnthropicClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))

		var req AnthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 8192, req.MaxTokens)
		assert.Equal(t, "user", req.Messages[0].Role)

		if req.Messages[0].Content == "limit" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"### main.tf hcl"}],"usage":{"input_tokens":1,"output_tokens":2}}`))
	}))
	defer srv.Close()

	c, err := NewAnthropicClient(&LlmConfig{APIKey: "k", ModelName: "claude", BaseURL: srv.URL, MaxTokens: 8192}, logger.NewNullLogger())
	require.NoError(t, err)

	res, err := c.GetCompletion(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "### main.tf hcl", res)

	_, err = c.GetCompletion(context.Background(), "limit")
	assert.EqualError(t, err, "rate limited by Anthropic API")
}

type recordingSink struct {
	batchID string
	in, out int
	err     error
}

func (s *recordingSink) Log(batchID, prompt, response, model string, inputTokens, outputTokens int) error {
	s.batchID, s.in, s.out = batchID, inputTokens, outputTokens
	return s.err
}

func TestRecordUsage(t *testing.T) {
	sink := &recordingSink{err: errors.New("unreachable")}
	cfg := &LlmConfig{BatchID: EnsureBatchID("")}
	recordUsage(sink, cfg, logger.NewNullLogger(), "p", "r", 10, 20)
	assert.Equal(t, cfg.BatchID, sink.batchID)
	assert.Equal(t, 10, sink.in)
	assert.Equal(t, 20, sink.out)

	recordUsage(nil, cfg, logger.NewNullLogger(), "p", "r", 1, 1)
	assert.Nil(t, newUsageSink(""))
}

func TestEnsureBatchID(t *testing.T) {
	id := EnsureBatchID("not-hex")
	assert.Len(t, id, 24)
	assert.Equal(t, id, EnsureBatchID(id))
}
