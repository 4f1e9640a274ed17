// Package summarize produces short LLM summaries of extracted document text.
//
// Availability is decided once, at construction: with no credential configured
// New returns Disabled, whose Summarize always reports SUMMARIZATION_UNAVAILABLE.
// Callers use that distinction to show a disabled control instead of a retry.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hpungsan/ocrdesk/internal/config"
	"github.com/hpungsan/ocrdesk/internal/errors"
)

const (
	systemPrompt = "You are a helpful assistant that creates concise summaries of text documents."
	userPrompt   = "Please provide a concise summary of the following text:\n\n"
	temperature  = 0.3
)

// Summarizer is the summarization capability handed to the rest of the app.
type Summarizer interface {
	// Available reports whether a credential is configured.
	Available() bool
	// Summarize returns a summary of text. Empty text yields "" without calling the endpoint.
	Summarize(ctx context.Context, text string) (string, error)
}

// Provider performs a single chat-style completion.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Disabled is the Summarizer used when no credential is configured.
type Disabled struct{}

func (Disabled) Available() bool { return false }

func (Disabled) Summarize(ctx context.Context, text string) (string, error) {
	return "", errors.NewSummarizationUnavailable()
}

// Options tunes a Service.
type Options struct {
	ChunkTokens int
	MaxTokens   int
	MaxRetries  int
	Timeout     time.Duration

	// NewBackOff overrides the retry schedule (tests use a zero-delay policy).
	NewBackOff func() backoff.BackOff

	Logger *slog.Logger
}

// Service summarizes text through a Provider with chunking and retries.
type Service struct {
	provider Provider
	opts     Options
	log      *slog.Logger
}

// NewService wraps provider. Zero-valued options fall back to the defaults.
func NewService(provider Provider, opts Options) *Service {
	def := config.DefaultConfig()
	if opts.ChunkTokens <= 0 {
		opts.ChunkTokens = def.SummaryChunkTokens
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.SummaryMaxTokens
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(def.SummaryTimeoutSeconds) * time.Second
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = defaultBackOff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{provider: provider, opts: opts, log: opts.Logger}
}

// New builds the Summarizer described by cfg.
// An empty API key yields Disabled; that is not an error.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Summarizer, error) {
	if strings.TrimSpace(cfg.LLMAPIKey) == "" {
		return Disabled{}, nil
	}

	if cfg.SummaryChunkTokens <= cfg.SummaryMaxTokens {
		return nil, fmt.Errorf("summary_chunk_tokens (%d) must be greater than summary_max_tokens (%d)",
			cfg.SummaryChunkTokens, cfg.SummaryMaxTokens)
	}

	var (
		provider Provider
		err      error
	)
	switch cfg.LLMProvider {
	case config.ProviderOpenAI, "":
		provider, err = NewOpenAIProvider(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	case config.ProviderGemini:
		provider, err = NewGeminiProvider(ctx, cfg.LLMAPIKey, cfg.LLMModel)
	default:
		return nil, fmt.Errorf("unknown llm_provider %q", cfg.LLMProvider)
	}
	if err != nil {
		return nil, err
	}

	return NewService(provider, Options{
		ChunkTokens: cfg.SummaryChunkTokens,
		MaxTokens:   cfg.SummaryMaxTokens,
		MaxRetries:  cfg.Retries(),
		Timeout:     time.Duration(cfg.SummaryTimeoutSeconds) * time.Second,
		Logger:      logger,
	}), nil
}

func (s *Service) Available() bool { return true }

// Summarize runs a two-level map-reduce: each chunk is summarized in order,
// then the joined chunk summaries are summarized into the final result.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	chunks := ChunkText(text, s.opts.ChunkTokens)
	if len(chunks) == 1 {
		return s.complete(ctx, chunks[0])
	}

	s.log.Info("summarizing in chunks",
		"provider", s.provider.Name(),
		"chunks", len(chunks),
		"tokens_estimate", EstimateTokens(text))

	partials := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		out, err := s.complete(ctx, chunk)
		if err != nil {
			return "", err
		}
		s.log.Debug("chunk summarized", "chunk", i+1, "of", len(chunks))
		partials = append(partials, out)
	}

	combined := strings.Join(partials, "\n\n")
	if EstimateTokens(combined) > s.opts.ChunkTokens {
		s.log.Warn("chunk summaries exceed one request, truncating before reduce",
			"provider", s.provider.Name(),
			"tokens_estimate", EstimateTokens(combined),
			"chunk_tokens", s.opts.ChunkTokens)
		combined = fitPartials(partials, s.opts.ChunkTokens)
	}
	return s.complete(ctx, combined)
}

// fitPartials joins partial summaries into at most maxTokens estimated tokens,
// giving each partial an equal share so later sections are not dropped.
func fitPartials(partials []string, maxTokens int) string {
	sepRunes := len("\n\n") * (len(partials) - 1)
	share := (maxTokens*charsPerToken - sepRunes) / len(partials)
	if share < 1 {
		share = 1
	}
	fitted := make([]string, len(partials))
	for i, p := range partials {
		if runes := []rune(p); len(runes) > share {
			p = string(runes[:share])
		}
		fitted[i] = p
	}
	return strings.Join(fitted, "\n\n")
}

// complete sends one chunk with retries.
func (s *Service) complete(ctx context.Context, chunk string) (string, error) {
	var out string
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		res, err := s.provider.Complete(callCtx, systemPrompt, userPrompt+chunk, s.opts.MaxTokens)
		if err != nil {
			if ctx.Err() != nil || !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = strings.TrimSpace(res)
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(s.opts.NewBackOff(), uint64(s.opts.MaxRetries)), ctx)
	notify := func(err error, wait time.Duration) {
		s.log.Warn("summarization attempt failed, retrying",
			"provider", s.provider.Name(), "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.NewSummarizationFailed(err)
	}
	return out, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 8 * time.Second
	b.MaxElapsedTime = 0
	return b
}
