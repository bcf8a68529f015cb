package service

import (
	"context"
	"fmt"
	"log/slog"

	"climalog/internal/metrics"
	"climalog/internal/modules/readings/repository"
	"climalog/internal/modules/readings/types"
)

// Sources label where a reading came from.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// Publisher receives every reading after it is stored.
type Publisher interface {
	Publish(r types.Reading)
}

type Service struct {
	repository repository.ReadingsRepository
	publisher  Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger

	defaultLimit int
	maxLimit     int
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLimits sets the default and maximum recent-window size.
func WithLimits(def, max int) Option {
	return func(s *Service) {
		s.defaultLimit = def
		s.maxLimit = max
	}
}

func NewService(repository repository.ReadingsRepository, opts ...Option) *Service {
	s := &Service{
		repository:   repository,
		logger:       slog.Default(),
		defaultLimit: 10,
		maxLimit:     1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest stores r and returns it with its assigned id.
func (s *Service) Ingest(ctx context.Context, source string, r types.Reading) (types.Reading, error) {
	id, err := s.repository.Append(ctx, r)
	s.metrics.ObserveIngest(source, err)
	if err != nil {
		s.logger.Error("failed to store reading", "source", source, "time", r.Time, "error", err)
		return types.Reading{}, fmt.Errorf("ingest: %w", err)
	}
	r.ID = id
	s.logger.Debug("reading stored", "source", source, "id", id, "time", r.Time)

	if s.publisher != nil {
		s.publisher.Publish(r)
	}
	return r, nil
}

// Recent returns up to num readings, newest first.
func (s *Service) Recent(ctx context.Context, num int) ([]types.Reading, error) {
	readings, err := s.repository.QueryRecent(ctx, num)
	s.metrics.ObserveQuery(err)
	if err != nil {
		return nil, fmt.Errorf("recent readings: %w", err)
	}
	return readings, nil
}

// RecentRaw parses the raw num query value with the configured limits and
// runs Recent.
func (s *Service) RecentRaw(ctx context.Context, rawNum string) ([]types.Reading, error) {
	num, err := s.ParseNum(rawNum)
	if err != nil {
		s.metrics.ObserveQuery(err)
		return nil, err
	}
	return s.Recent(ctx, num)
}

func (s *Service) ParseNum(raw string) (int, error) {
	return ParseNum(raw, s.defaultLimit, s.maxLimit)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repository.Count(ctx)
}
