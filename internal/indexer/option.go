package indexer

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/starford/notegraph/internal/analytics"
	"github.com/starford/notegraph/internal/parser"
	"github.com/starford/notegraph/internal/storage"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWorkers bounds the number of documents read and parsed concurrently.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithParser sets the parser (and with it the reading speed).
func WithParser(p *parser.Parser) Option {
	return func(s *Service) {
		if p != nil {
			s.parser = p
		}
	}
}

// WithExtension sets the document extension stripped from file names.
func WithExtension(ext string) Option {
	return func(s *Service) {
		if ext != "" {
			s.ext = ext
		}
	}
}

// WithAnalytics sets the analytics engine.
func WithAnalytics(e *analytics.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source used for sync timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func defaults() *Service {
	return &Service{
		logger:  slog.Default(),
		workers: runtime.NumCPU(),
		parser:  parser.New(parser.DefaultWordsPerMinute),
		ext:     storage.DefaultExtension,
		engine:  analytics.New(analytics.Options{}),
		metrics: NewMetrics(nil),
		now:     time.Now,
	}
}
