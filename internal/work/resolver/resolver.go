// Package resolver decides whether the session holder has an active work that must be dealt with
// before normal navigation.
package resolver

import (
	"context"
	"errors"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"gig-marketplace/client/internal/platform/errkind"
	sessiondomain "gig-marketplace/client/internal/session/domain"
	"gig-marketplace/client/internal/work/domain"
	"gig-marketplace/client/internal/work/engine"
)

const tracerName = "gig-marketplace/client/work/resolver"

// WorkQuery fetches the active-work result for the current bearer token.
type WorkQuery interface {
	ActiveWork(ctx context.Context) (*domain.QueryResult, error)
}

// Resolver is the ActiveWorkResolver.
type Resolver struct {
	query     WorkQuery
	evaluator engine.Evaluator
}

// New returns a Resolver. A nil evaluator uses the native rule table.
func New(query WorkQuery, evaluator engine.Evaluator) *Resolver {
	if evaluator == nil {
		evaluator = engine.RuleEvaluator{}
	}
	return &Resolver{query: query, evaluator: evaluator}
}

// Resolve returns the routing decision for session. A session without a token is
// Unauthenticated. Query failures never surface: they are logged and resolve to NoAction.
// Only the first active work is considered.
func (r *Resolver) Resolve(ctx context.Context, session sessiondomain.Session) (domain.RoutingDecision, error) {
	const op = "resolver.Resolve"
	if !session.Authenticated() {
		return domain.RoutingDecision{}, errkind.E(errkind.Unauthenticated, op, errors.New("session has no token"))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "work.resolve")
	defer span.End()

	res, err := r.query.ActiveWork(ctx)
	if err != nil {
		if errkind.KindOf(err) != errkind.TransientQueryFailure {
			err = errkind.E(errkind.TransientQueryFailure, op, err)
		}
		log.Printf("resolver: active work query failed, continuing without routing: %v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "active work query failed")
		span.SetAttributes(attribute.String("routing.decision", string(domain.KindNoAction)))
		return domain.NoAction(), nil
	}

	w, ok := res.First()
	if !ok {
		span.SetAttributes(attribute.String("routing.decision", string(domain.KindNoAction)))
		return domain.NoAction(), nil
	}
	span.SetAttributes(
		attribute.String("work.role", string(res.Role)),
		attribute.String("work.status", string(w.Status)),
		attribute.Int("work.count", len(res.Works)),
	)

	d, err := r.evaluator.Evaluate(ctx, res.Role, w)
	if err != nil || !d.Valid() {
		log.Printf("resolver: evaluator failed (%v), using native rules", err)
		d = engine.Decide(res.Role, w)
	}
	span.SetAttributes(attribute.String("routing.decision", string(d.Kind)))
	return d, nil
}
