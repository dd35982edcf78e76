// Package engine evaluates the active-work priority rules that turn an active work into a
// routing decision.
package engine

import (
	"context"

	"gig-marketplace/client/internal/work/domain"
)

// Evaluator applies the rule table to the first active work for role.
type Evaluator interface {
	Evaluate(ctx context.Context, role domain.Role, work domain.ActiveWork) (domain.RoutingDecision, error)
}

// RuleEvaluator is the native rule table. Rules are checked in order and the first match wins:
//
//	a. worker that has not confirmed      -> rate the employer
//	b. employer that has not confirmed    -> rate the worker
//	c. work still in progress             -> offer to resume it
//	d. otherwise                          -> no action
//
// A work can be in progress and unconfirmed at once; the order makes ratings outrank resuming.
type RuleEvaluator struct{}

// Evaluate never fails.
func (RuleEvaluator) Evaluate(_ context.Context, role domain.Role, w domain.ActiveWork) (domain.RoutingDecision, error) {
	return Decide(role, w), nil
}

// Decide is the rule table as a pure function.
func Decide(role domain.Role, w domain.ActiveWork) domain.RoutingDecision {
	switch {
	case role == domain.RoleWorker && !w.CompletionStatus.WorkerConfirmed:
		return domain.Rate(domain.RateCounterparty{
			TargetUserID:      w.EmployerID,
			WorkID:            w.WorkID,
			RatingSubjectRole: domain.RoleEmployer,
		})
	case role == domain.RoleEmployer && !w.CompletionStatus.EmployerConfirmed:
		return domain.Rate(domain.RateCounterparty{
			TargetUserID:      w.WorkerID,
			WorkID:            w.WorkID,
			RatingSubjectRole: domain.RoleWorker,
		})
	case w.Status == domain.StatusInProgress:
		return domain.Resume(domain.ResumeInProgressWork{
			WorkID:        w.WorkID,
			ApplicationID: w.ApplicationID,
			WorkTitle:     w.WorkTitle,
		})
	default:
		return domain.NoAction()
	}
}
