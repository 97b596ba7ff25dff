// Package numerator allocates document numbers from configured patterns.
// It implements core/numerator.Generator on top of a numerator.Store.
package numerator

import (
	"context"
	"fmt"
	"time"

	corenumerator "procurement/internal/core/numerator"
)

// Service allocates "highest existing + 1" numbers. Callers must run it
// inside the transaction that inserts the numbered document.
type Service struct {
	store    corenumerator.Store
	patterns corenumerator.PatternSource // optional
}

// Ensure compile-time interface compliance.
var _ corenumerator.Generator = (*Service)(nil)

// New creates a numbering service. patterns may be nil, every document
// type then uses corenumerator.DefaultPattern.
func New(store corenumerator.Store, patterns corenumerator.PatternSource) *Service {
	return &Service{store: store, patterns: patterns}
}

// Next implements corenumerator.Generator.
func (s *Service) Next(ctx context.Context, docType string, refDate time.Time) (string, error) {
	if s == nil || s.store == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	pattern, err := s.pattern(ctx, docType)
	if err != nil {
		return "", err
	}
	prefix, suffix, err := pattern.Affixes(refDate)
	if err != nil {
		return "", err
	}

	if err := s.store.Lock(ctx, lockKey(docType, prefix, suffix)); err != nil {
		return "", fmt.Errorf("lock sequence %s: %w", docType, err)
	}

	latest, err := s.store.LatestNumber(ctx, docType, prefix, suffix)
	if err != nil {
		return "", fmt.Errorf("latest %s number: %w", docType, err)
	}

	var last int64
	if latest != "" {
		last, err = pattern.ParseRunning(latest, prefix, suffix)
		if err != nil {
			return "", fmt.Errorf("parse latest %s number: %w", docType, err)
		}
	}

	return pattern.Format(refDate, last+1)
}

func (s *Service) pattern(ctx context.Context, docType string) (corenumerator.Pattern, error) {
	if s.patterns != nil {
		p, found, err := s.patterns.Pattern(ctx, docType)
		if err != nil {
			return corenumerator.Pattern{}, fmt.Errorf("load %s pattern: %w", docType, err)
		}
		if found {
			return p, nil
		}
	}
	return corenumerator.DefaultPattern(docType), nil
}

func lockKey(docType, prefix, suffix string) string {
	return docType + "|" + prefix + "|" + suffix
}
