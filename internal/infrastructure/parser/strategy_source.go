package parser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/be-green/grab-cafe/internal/domain"
	"github.com/be-green/grab-cafe/internal/ports"
	"github.com/be-green/grab-cafe/internal/scanner"
)

// StrategySource implements ResultSource via a registered scanner
// strategy.
type StrategySource struct {
	registry *scanner.Registry
	strategy string
	logger   *slog.Logger
}

var _ ports.ResultSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with the strategy name
// to execute.
func NewStrategySource(reg *scanner.Registry, strategy string, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		strategy: strategy,
		logger:   log,
	}
}

// FetchPage resolves the configured strategy and executes it.
func (s *StrategySource) FetchPage(ctx context.Context, page int) ([]domain.Candidate, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(s.strategy)
	if err != nil {
		return nil, fmt.Errorf("resolve source: %w", err)
	}

	candidates, err := strategy.FetchPage(ctx, page)
	if err != nil {
		return nil, err
	}

	s.debug("source produced candidates", "strategy", s.strategy, "page", page, "count", len(candidates))
	return candidates, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
