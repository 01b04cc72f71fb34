// Package engage turns an /engage request into a voice.
//
// The flow per request is: validate -> parse coordinate -> compile prompt -> generate.
// A failed generation is absorbed exactly once into the canned fallback voice; callers only
// ever see a voice. Input errors are the one thing returned to the caller.
package engage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/pattern-space/pkg/events"
	"github.com/go-go-golems/pattern-space/pkg/fallback"
	"github.com/go-go-golems/pattern-space/pkg/generation"
	"github.com/go-go-golems/pattern-space/pkg/prompt"
	"github.com/go-go-golems/pattern-space/pkg/tokens"
)

// Engager is the surface used by the HTTP handler and the CLI.
type Engager interface {
	Engage(ctx context.Context, req Request) (Response, error)
}

// Service holds no per-request state; one instance serves all requests concurrently.
type Service struct {
	gateway   generation.Gateway
	compiler  *prompt.Compiler
	counter   *tokens.Counter
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithPublisher publishes one EngagementEvent per completed request.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithTokenCounter records the compiled prompt size in logs and events.
func WithTokenCounter(c *tokens.Counter) Option {
	return func(s *Service) { s.counter = c }
}

func WithCompiler(c *prompt.Compiler) Option {
	return func(s *Service) { s.compiler = c }
}

func NewService(gateway generation.Gateway, opts ...Option) (*Service, error) {
	if gateway == nil {
		return nil, errors.New("gateway is nil")
	}
	s := &Service{
		gateway: gateway,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.compiler == nil {
		c, err := prompt.NewCompiler()
		if err != nil {
			return nil, errors.Wrap(err, "prompt compiler")
		}
		s.compiler = c
	}
	return s, nil
}

// Engage returns an *InputError for invalid requests; any other failure ends in the fallback voice.
func (s *Service) Engage(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}

	start := s.now()
	logger := s.logger.With().
		Str("request_id", req.RequestID).
		Str("coordinate", req.Coordinate).
		Str("mode", req.Mode.String()).
		Logger()

	p, err := s.compiler.Compile(prompt.Params{
		Coordinate: req.Coordinate,
		Mode:       req.Mode,
		Query:      req.Query,
		History:    req.History,
		Modifiers:  prompt.Modifiers{Domain: req.Domain, Voice: req.Voice},
	})
	if err != nil {
		if errors.Is(err, prompt.ErrMissingQuery) || errors.Is(err, prompt.ErrUnknownMode) {
			return Response{}, badRequest("invalid request", err)
		}
		logger.Error().Err(err).Msg("prompt compilation failed, using fallback")
		return s.respond(ctx, logger, req, start, fallback.Voice(req.Mode, req.Coordinate, req.Query), true, 0), nil
	}

	promptTokens := s.countTokens(logger, p)
	logger.Debug().Int("prompt_tokens", promptTokens).Int("turns", len(req.History)).Msg("prompt compiled")

	outcome := s.gateway.Generate(ctx, p)
	if !outcome.Succeeded() {
		logger.Warn().Err(outcome.Err()).Msg("generation failed, using fallback")
		return s.respond(ctx, logger, req, start, fallback.Voice(req.Mode, req.Coordinate, req.Query), true, promptTokens), nil
	}

	return s.respond(ctx, logger, req, start, outcome.Text(), false, promptTokens), nil
}

func (s *Service) respond(
	ctx context.Context,
	logger zerolog.Logger,
	req Request,
	start time.Time,
	voice string,
	usedFallback bool,
	promptTokens int,
) Response {
	if s.publisher != nil {
		ev := events.EngagementEvent{
			RequestID:    req.RequestID,
			Coordinate:   req.Coordinate,
			Mode:         req.Mode.String(),
			Fallback:     usedFallback,
			PromptTokens: promptTokens,
			DurationMS:   s.now().Sub(start).Milliseconds(),
			At:           start.UTC(),
		}
		if err := s.publisher.PublishEngagement(context.WithoutCancel(ctx), ev); err != nil {
			logger.Warn().Err(err).Msg("could not publish engagement event")
		}
	}
	return Response{Coordinate: req.Coordinate, Voice: voice}
}

func (s *Service) countTokens(logger zerolog.Logger, p string) int {
	if s.counter == nil {
		return 0
	}
	n, err := s.counter.Count(p)
	if err != nil {
		logger.Debug().Err(err).Msg("token count failed")
		return 0
	}
	return n
}

var _ Engager = (*Service)(nil)
