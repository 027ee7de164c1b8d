package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/nutriscan/backend/internal/domain"
)

const (
	DefaultModel          = "gemini-2.5-flash"
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 2 * time.Second
)

// contentGenerator is the subset of genai.Models the client uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config holds the analysis client settings
type Config struct {
	APIKey            string
	Model             string
	MaxRetries        int
	InitialBackoff    time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client analyzes food images and descriptions with a Gemini model
type Client struct {
	models         contentGenerator
	model          string
	maxRetries     int
	initialBackoff time.Duration
	rateLimiter    *rate.Limiter
	sleep          func(ctx context.Context, d time.Duration) error
	logger         *zap.Logger
}

// NewClient creates a Gemini analysis client
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return newClient(gc.Models, cfg, logger), nil
}

func newClient(models contentGenerator, cfg Config, logger *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		models:         models,
		model:          cfg.Model,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		rateLimiter:    rate.NewLimiter(limit, cfg.Burst),
		sleep:          sleepContext,
		logger:         logger.Named("gemini"),
	}
}

// AnalyzeImage identifies the product in an image and rates its ingredients
func (c *Client) AnalyzeImage(ctx context.Context, image domain.Image, language domain.Language) (*domain.FoodAnalysis, error) {
	if len(image.Data) == 0 {
		return nil, c.fail("image", domain.SourceImage, domain.ErrEmptyInput)
	}
	mimeType := image.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image.Data, mimeType),
			genai.NewPartFromText(imagePrompt(language)),
		}, genai.RoleUser),
	}

	analysis, err := c.generateWithRetry(ctx, "image", contents)
	if err != nil {
		return nil, c.fail("image", domain.SourceImage, err)
	}
	return analysis, nil
}

// AnalyzeText analyzes a free-form product description or ingredient list
func (c *Client) AnalyzeText(ctx context.Context, description string, language domain.Language) (*domain.FoodAnalysis, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, c.fail("text", domain.SourceText, domain.ErrEmptyInput)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(textPrompt(description, language), genai.RoleUser),
	}

	analysis, err := c.generateWithRetry(ctx, "text", contents)
	if err != nil {
		return nil, c.fail("text", domain.SourceText, err)
	}
	return analysis, nil
}

// Translate re-renders analysis in language. Price and ratings are copied
// from the input whatever the model returns. Errors are returned as is;
// there is no retry.
func (c *Client) Translate(ctx context.Context, analysis *domain.FoodAnalysis, language domain.Language) (*domain.FoodAnalysis, error) {
	if analysis == nil {
		return nil, fmt.Errorf("%w: analysis is nil", domain.ErrInvalidAnalysis)
	}

	prompt, err := translatePrompt(analysis, language)
	if err != nil {
		return nil, err
	}

	requestsTotal.WithLabelValues("translate").Inc()
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	translated, err := c.generate(ctx, []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	})
	if err != nil {
		failuresTotal.WithLabelValues("translate", "error").Inc()
		return nil, err
	}

	if len(translated.Ingredients) != len(analysis.Ingredients) {
		failuresTotal.WithLabelValues("translate", "error").Inc()
		return nil, fmt.Errorf("%w: translation returned %d ingredients, want %d",
			domain.ErrInvalidAnalysis, len(translated.Ingredients), len(analysis.Ingredients))
	}

	translated.Price = analysis.Price
	for i := range translated.Ingredients {
		translated.Ingredients[i].Rating = analysis.Ingredients[i].Rating
	}
	return translated, nil
}

// generateWithRetry issues the request, retrying transient failures with
// exponential backoff.
func (c *Client) generateWithRetry(ctx context.Context, operation string, contents []*genai.Content) (*domain.FoodAnalysis, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(c.initialBackoff, attempt)
			c.logger.Warn("transient model error, retrying",
				zap.String("operation", operation),
				zap.Int("retry", attempt),
				zap.Duration("backoff", wait),
				zap.Error(lastErr))
			retriesTotal.WithLabelValues(operation).Inc()
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		requestsTotal.WithLabelValues(operation).Inc()
		resp, err := c.call(ctx, contents)
		if err != nil {
			if !isTransient(err) {
				return nil, err
			}
			lastErr = err
			continue
		}
		// A malformed payload is final; only the call itself is retried.
		return parseAnalysis(responseText(resp))
	}

	return nil, &exhaustedError{attempts: c.maxRetries + 1, err: lastErr}
}

// call issues one structured-output request
func (c *Client) call(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	return c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema(),
	})
}

// generate runs one request and parses the response
func (c *Client) generate(ctx context.Context, contents []*genai.Content) (*domain.FoodAnalysis, error) {
	resp, err := c.call(ctx, contents)
	if err != nil {
		return nil, err
	}
	return parseAnalysis(responseText(resp))
}

// fail wraps err into the AnalysisError returned to callers
func (c *Client) fail(operation string, source domain.AnalysisSource, err error) error {
	kind := domain.AnalysisUnprocessable
	var exhausted *exhaustedError
	if errors.As(err, &exhausted) {
		kind = domain.AnalysisBusy
	}

	failuresTotal.WithLabelValues(operation, string(kind)).Inc()
	c.logger.Error("analysis failed",
		zap.String("operation", operation),
		zap.String("kind", string(kind)),
		zap.Error(err))

	return &domain.AnalysisError{Kind: kind, Source: source, Err: err}
}

// exhaustedError marks a transient failure that outlived every retry
type exhaustedError struct {
	attempts int
	err      error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.attempts, e.err)
}

func (e *exhaustedError) Unwrap() error {
	return e.err
}

// responseText joins the non-thought text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// parseAnalysis decodes and validates the model's JSON payload
func parseAnalysis(text string) (*domain.FoodAnalysis, error) {
	text = stripCodeFence(strings.TrimSpace(text))
	if text == "" {
		return nil, domain.ErrEmptyResponse
	}

	var analysis domain.FoodAnalysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAnalysis, err)
	}

	analysis.Normalize()
	if err := analysis.Validate(); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
