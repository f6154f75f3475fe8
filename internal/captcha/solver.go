// Package captcha solves the distorted digit-sequence images that gate
// final submission. The pipeline is capture → binarize → OCR →
// normalize, retried up to a bounded attempt count with an optional
// image refresh between attempts.
package captcha

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrUnsolved means the attempt budget ran out without the OCR output
// ever matching the expected code shape. Terminal for the session.
var ErrUnsolved = errors.New("captcha: challenge unsolved")

// CaptureFunc grabs the current challenge image as encoded bytes.
type CaptureFunc func(ctx context.Context) ([]byte, error)

// RefreshFunc asks the page for a fresh challenge image. May be nil
// when the site has no refresh hook.
type RefreshFunc func(ctx context.Context) error

// Recognizer turns a binarized image into raw text. The production
// implementation wraps tesseract; tests substitute a fake.
type Recognizer interface {
	Recognize(image []byte) (string, error)
}

// Solver runs the challenge pipeline.
type Solver struct {
	Recognizer Recognizer
	// CodeLength is the exact digit count a valid code must have.
	CodeLength int
	// Threshold is the fixed binarization cutoff; 0 selects the
	// adaptive per-image threshold.
	Threshold int
	Log       *zap.Logger
}

// Solve captures and recognizes until a candidate of exactly
// CodeLength digits emerges or maxAttempts is exhausted. Zero or
// garbage OCR output counts as a failed attempt, not an error.
func (s *Solver) Solve(ctx context.Context, capture CaptureFunc, refresh RefreshFunc, maxAttempts int) (string, error) {
	if maxAttempts < 1 {
		return "", fmt.Errorf("captcha: maxAttempts must be positive, got %d", maxAttempts)
	}
	// A zero length would let an empty OCR result pass as a solved
	// code.
	if s.CodeLength < 1 {
		return "", fmt.Errorf("captcha: CodeLength must be positive, got %d", s.CodeLength)
	}
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if attempt > 1 && refresh != nil {
			if err := refresh(ctx); err != nil {
				return "", fmt.Errorf("refresh challenge image: %w", err)
			}
		}

		code, err := s.attempt(ctx, capture)
		if err != nil {
			log.Debug("challenge attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if len(code) == s.CodeLength {
			log.Debug("challenge solved", zap.Int("attempt", attempt))
			return code, nil
		}
		log.Debug("challenge output rejected",
			zap.Int("attempt", attempt), zap.Int("digits", len(code)))
	}
	return "", fmt.Errorf("%w after %d attempts", ErrUnsolved, maxAttempts)
}

func (s *Solver) attempt(ctx context.Context, capture CaptureFunc) (string, error) {
	raw, err := capture(ctx)
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	if len(raw) == 0 {
		return "", errors.New("capture returned no bytes")
	}

	binarized, err := Binarize(raw, s.Threshold)
	if err != nil {
		return "", err
	}

	text, err := s.Recognizer.Recognize(binarized)
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return Normalize(text), nil
}
