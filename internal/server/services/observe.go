package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/tracing"
)

// Operation names, used for spans, metrics and logs.
const (
	opRegister  = "register"
	opLogin     = "login"
	opRefresh   = "refresh"
	opLogout    = "logout"
	opMe        = "me"
	opSessions  = "sessions"
	opSetActive = "set_active"
)

var tracer = tracing.Tracer("github.com/dmitrijs2005/gophauth/internal/server/services")

// begin opens a span for op. The returned func closes it and must receive
// the operation's error; it returns that error mapped onto the common
// categories.
func (s *UserService) begin(ctx context.Context, op string) (context.Context, func(error) error) {
	ctx, span := tracer.Start(ctx, "UserService."+op)

	return ctx, func(err error) error {
		defer span.End()

		err = categorize(err)
		outcome := Outcome(err)
		s.metrics.ObserveRequest(op, outcome)
		span.SetAttributes(attribute.String("auth.outcome", outcome))

		switch outcome {
		case metrics.OutcomeOK:
		case metrics.OutcomeUnavailable:
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			s.logger.Warn(ctx, op+" unavailable", "error", err)
		case metrics.OutcomeError:
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			s.logger.Error(ctx, op+" failed", "error", err)
		default:
			s.logger.Info(ctx, op+" rejected", "outcome", outcome, "reason", err)
		}
		return err
	}
}

// categorize makes sure err wraps exactly one of the common categories.
func categorize(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorConflict),
		errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrorValidation),
		errors.Is(err, common.ErrorUnavailable),
		errors.Is(err, common.ErrorInternal):
		return err
	case errors.Is(err, common.ErrInvalidToken):
		return fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	case errors.Is(err, context.Canceled), dbx.IsUnavailable(err):
		return fmt.Errorf("%w: %w", common.ErrorUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
}

// Outcome names the category of err for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, common.ErrorConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, common.ErrorUnauthorized):
		return metrics.OutcomeUnauthorized
	case errors.Is(err, common.ErrorValidation):
		return metrics.OutcomeInvalid
	case errors.Is(err, common.ErrorUnavailable):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeError
	}
}
