package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/config"
)

// Client implements Service over the HTTP APIs of the supported providers.
type Client struct {
	config     config.LLMConfig
	httpClient *http.Client
}

// NewClient creates a new LLM client with the given configuration.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("API key is required for OpenAI provider")
		}

		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.openai.com/v1"
		}
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("API key is required for Anthropic provider")
		}

		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.anthropic.com/v1"
		}
	case ProviderOllama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:11434"
		}
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}

	timeout := cfg.TimeoutDuration()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// GenerateQuery asks the model for a candidate SQL query.
func (c *Client) GenerateQuery(ctx context.Context, req GenerateRequest) (*QueryResponse, error) {
	prompt := buildGenerationPrompt(req)

	raw, err := c.completeJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var response QueryResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("failed to parse generation response: %w", err)
	}

	return &response, nil
}

// EvaluateQuery asks the model to validate or repair a candidate query.
func (c *Client) EvaluateQuery(ctx context.Context, req EvaluateRequest) (*EvaluationResponse, error) {
	prompt := buildEvaluationPrompt(req)

	raw, err := c.completeJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var response EvaluationResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("failed to parse evaluation response: %w", err)
	}

	return &response, nil
}

// buildGenerationPrompt creates the catalog-scoped generation prompt.
func buildGenerationPrompt(req GenerateRequest) string {
	var sb strings.Builder

	sb.WriteString(`You are an expert at converting natural language questions into SQL queries.
Convert the user's question into a single read-only SELECT statement using only the tables listed below.

Respond with a JSON object containing the following fields:
- sql: The generated SQL query (a single SELECT statement, no comments, no semicolons)
- explanation: A clear explanation of what the query does
- confidence: A float between 0.0 and 1.0

Guidelines:
1. Only reference tables from the catalog below
2. Prefer a LIMIT clause for potentially large result sets
3. Never modify data; SELECT only

Available tables:
`)
	sb.WriteString(req.Catalog)

	if len(req.Examples) > 0 {
		sb.WriteString("\nWorked examples:\n")

		for _, example := range req.Examples {
			sb.WriteString(fmt.Sprintf("Q: %s\nSQL: %s\n", example.Question, example.SQL))
		}
	}

	if len(req.RepairNotes) > 0 {
		sb.WriteString("\nA previous attempt was rejected. Address these notes:\n")

		for _, note := range req.RepairNotes {
			sb.WriteString("- " + note + "\n")
		}
	}

	sb.WriteString("\nQuestion: " + req.Question)

	return sb.String()
}

// buildEvaluationPrompt creates the schema-scoped evaluation prompt.
func buildEvaluationPrompt(req EvaluateRequest) string {
	var sb strings.Builder

	sb.WriteString(`You are an expert SQL reviewer. Validate the candidate query below against the
detailed table schemas and repair it if needed: wrong column names, type
mismatches, joins implied by the business rules, or wrong aggregation.

Respond with a JSON object containing the following fields:
- sql: The corrected query, or the candidate unchanged if already correct
- is_valid: true when the returned sql can be trusted; false when no confident repair exists
- notes: What was wrong, or what prevented a confident repair
- confidence: A float between 0.0 and 1.0

`)

	if req.Schemas != "" {
		sb.WriteString("Table schemas:\n" + req.Schemas + "\n")
	} else {
		sb.WriteString("No schema context is available for the referenced tables; review with reduced confidence.\n\n")
	}

	if req.Relationships != "" {
		sb.WriteString("Known relationships (for context only):\n" + req.Relationships + "\n")
	}

	if len(req.MissingSchemas) > 0 {
		sb.WriteString("Tables without catalog schemas: " + strings.Join(req.MissingSchemas, ", ") + "\n")
	}

	sb.WriteString("\nQuestion: " + req.Question)
	sb.WriteString("\nCandidate SQL: " + req.CandidateSQL)

	return sb.String()
}

// completeJSON sends the prompt to the configured provider and returns
// the raw JSON object the model produced.
func (c *Client) completeJSON(ctx context.Context, prompt string) ([]byte, error) {
	switch c.config.Provider {
	case ProviderOpenAI:
		return c.completeOpenAI(ctx, prompt)
	case ProviderAnthropic:
		return c.completeAnthropic(ctx, prompt)
	case ProviderOllama:
		return c.completeOllama(ctx, prompt)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", c.config.Provider)
	}
}

// OpenAI API structures
type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *Client) completeOpenAI(ctx context.Context, prompt string) ([]byte, error) {
	reqBody := openAIRequest{
		Model: c.config.Model,
		Messages: []openAIMessage{
			{Role: "user", Content: prompt},
		},
		Temperature:    0.1,
		MaxTokens:      1500,
		ResponseFormat: &openAIResponseFormat{Type: "json_object"},
	}

	respBody, err := c.post(ctx, "/chat/completions", reqBody, c.openAIHeaders())
	if err != nil {
		return nil, err
	}

	var response openAIResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse OpenAI response: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("OpenAI API error: %s", response.Error.Message)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return []byte(response.Choices[0].Message.Content), nil
}

// Anthropic API structures
type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *Client) completeAnthropic(ctx context.Context, prompt string) ([]byte, error) {
	reqBody := anthropicRequest{
		Model:     c.config.Model,
		MaxTokens: 1500,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	respBody, err := c.post(ctx, "/messages", reqBody, c.anthropicHeaders())
	if err != nil {
		return nil, err
	}

	var response anthropicResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse Anthropic response: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("Anthropic API error: %s", response.Error.Message)
	}

	if len(response.Content) == 0 {
		return nil, fmt.Errorf("no response from Anthropic")
	}

	return []byte(response.Content[0].Text), nil
}

// Ollama API structures
type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (c *Client) completeOllama(ctx context.Context, prompt string) ([]byte, error) {
	reqBody := ollamaRequest{
		Model:  c.config.Model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	}

	respBody, err := c.post(ctx, "/api/generate", reqBody, nil)
	if err != nil {
		return nil, err
	}

	var response ollamaResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse Ollama response: %w", err)
	}

	if response.Error != "" {
		return nil, fmt.Errorf("Ollama API error: %s", response.Error)
	}

	return []byte(response.Response), nil
}

// Embedding API structures
type openAIEmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *openAIError `json:"error,omitempty"`
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// Embed returns the embedding vector for text using the provider's
// embedding endpoint. Anthropic offers no embedding API.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	switch c.config.Provider {
	case ProviderOpenAI:
		respBody, err := c.post(ctx, "/embeddings", openAIEmbeddingRequest{
			Model: c.config.Model,
			Input: text,
		}, c.openAIHeaders())
		if err != nil {
			return nil, err
		}

		var response openAIEmbeddingResponse
		if err := json.Unmarshal(respBody, &response); err != nil {
			return nil, fmt.Errorf("failed to parse embedding response: %w", err)
		}

		if response.Error != nil {
			return nil, fmt.Errorf("OpenAI API error: %s", response.Error.Message)
		}

		if len(response.Data) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}

		return response.Data[0].Embedding, nil

	case ProviderOllama:
		respBody, err := c.post(ctx, "/api/embeddings", ollamaEmbeddingRequest{
			Model:  c.config.Model,
			Prompt: text,
		}, nil)
		if err != nil {
			return nil, err
		}

		var response ollamaEmbeddingResponse
		if err := json.Unmarshal(respBody, &response); err != nil {
			return nil, fmt.Errorf("failed to parse embedding response: %w", err)
		}

		if response.Error != "" {
			return nil, fmt.Errorf("Ollama API error: %s", response.Error)
		}

		return response.Embedding, nil

	default:
		return nil, fmt.Errorf("provider %s does not support embeddings", c.config.Provider)
	}
}

func (c *Client) openAIHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.config.APIKey,
	}
}

func (c *Client) anthropicHeaders() map[string]string {
	return map[string]string{
		"x-api-key":         c.config.APIKey,
		"anthropic-version": "2023-06-01",
	}
}

// post makes an HTTP request to the provider API.
func (c *Client) post(ctx context.Context, endpoint string, reqBody interface{}, headers map[string]string) ([]byte, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
