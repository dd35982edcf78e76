package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"gig-marketplace/client/internal/work/domain"
)

const decisionQuery = "data.gig.routing.decision"

// DefaultRegoPolicy is the rule table expressed in Rego. The else chain keeps the priority order.
const DefaultRegoPolicy = `package gig.routing

default decision := {"kind": "no_action_required"}

decision := {
	"kind": "rate_counterparty",
	"target_user_id": input.work.employer_id,
	"work_id": input.work.work_id,
	"rating_subject_role": "employer"
} if {
	input.role == "worker"
	not input.work.completion_status.worker_confirmed
} else := {
	"kind": "rate_counterparty",
	"target_user_id": input.work.worker_id,
	"work_id": input.work.work_id,
	"rating_subject_role": "worker"
} if {
	input.role == "employer"
	not input.work.completion_status.employer_confirmed
} else := {
	"kind": "resume_in_progress_work",
	"work_id": input.work.work_id,
	"application_id": input.work.application_id,
	"work_title": input.work.work_title
} if {
	input.work.status == "in_progress"
}
`

var ErrNoResult = errors.New("engine: policy query returned no result")

// OPAEvaluator evaluates the rule table with OPA Rego. The policy is compiled once.
// When evaluation fails it logs and falls back to the native table.
type OPAEvaluator struct {
	compiler *ast.Compiler
	fallback Evaluator
}

// NewOPAEvaluator compiles policy (DefaultRegoPolicy when empty).
func NewOPAEvaluator(policy string) (*OPAEvaluator, error) {
	if policy == "" {
		policy = DefaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"routing.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile routing policy: %w", err)
	}
	return &OPAEvaluator{compiler: compiler, fallback: RuleEvaluator{}}, nil
}

// HealthCheck evaluates the compiled policy against a known input and checks the answer
// matches the native table.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	w := domain.ActiveWork{
		WorkID:     "health",
		EmployerID: "e",
		WorkerID:   "w",
		Status:     domain.StatusInProgress,
	}
	got, err := e.eval(ctx, domain.RoleWorker, w)
	if err != nil {
		return err
	}
	want := Decide(domain.RoleWorker, w)
	if got.Kind != want.Kind || got.Rating == nil || *got.Rating != *want.Rating {
		return fmt.Errorf("engine: policy answered %q, want %q", got.Kind, want.Kind)
	}
	return nil
}

// Evaluate runs the policy. Errors fall back to the native table and are not returned.
func (e *OPAEvaluator) Evaluate(ctx context.Context, role domain.Role, w domain.ActiveWork) (domain.RoutingDecision, error) {
	d, err := e.eval(ctx, role, w)
	if err != nil {
		log.Printf("engine: policy evaluation failed: %v, using native rules", err)
		return e.fallback.Evaluate(ctx, role, w)
	}
	return d, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, role domain.Role, w domain.ActiveWork) (domain.RoutingDecision, error) {
	q := rego.New(
		rego.Query(decisionQuery),
		rego.Compiler(e.compiler),
		rego.Input(buildInput(role, w)),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return domain.RoutingDecision{}, fmt.Errorf("eval routing policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return domain.RoutingDecision{}, ErrNoResult
	}
	obj, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return domain.RoutingDecision{}, fmt.Errorf("engine: decision is %T, want object", rs[0].Expressions[0].Value)
	}
	return decode(obj)
}

func buildInput(role domain.Role, w domain.ActiveWork) map[string]interface{} {
	return map[string]interface{}{
		"role": string(role),
		"work": map[string]interface{}{
			"work_id":        w.WorkID,
			"employer_id":    w.EmployerID,
			"worker_id":      w.WorkerID,
			"work_title":     w.WorkTitle,
			"application_id": w.ApplicationID,
			"status":         string(w.Status),
			"completion_status": map[string]interface{}{
				"worker_confirmed":   w.CompletionStatus.WorkerConfirmed,
				"employer_confirmed": w.CompletionStatus.EmployerConfirmed,
			},
		},
	}
}

func decode(obj map[string]interface{}) (domain.RoutingDecision, error) {
	str := func(k string) string {
		s, _ := obj[k].(string)
		return s
	}
	switch domain.DecisionKind(str("kind")) {
	case domain.KindNoAction:
		return domain.NoAction(), nil
	case domain.KindRateCounterparty:
		return domain.Rate(domain.RateCounterparty{
			TargetUserID:      str("target_user_id"),
			WorkID:            str("work_id"),
			RatingSubjectRole: domain.Role(str("rating_subject_role")),
		}), nil
	case domain.KindResumeInProgressWork:
		return domain.Resume(domain.ResumeInProgressWork{
			WorkID:        str("work_id"),
			ApplicationID: str("application_id"),
			WorkTitle:     str("work_title"),
		}), nil
	default:
		return domain.RoutingDecision{}, fmt.Errorf("engine: unknown decision kind %q", str("kind"))
	}
}

// New returns the evaluator for name ("native" or "opa"). The OPA evaluator is health-checked
// before use.
func New(ctx context.Context, name string) (Evaluator, error) {
	switch name {
	case "", "native":
		return RuleEvaluator{}, nil
	case "opa":
		e, err := NewOPAEvaluator("")
		if err != nil {
			return nil, err
		}
		if err := e.HealthCheck(ctx); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("engine: unknown routing engine %q", name)
	}
}
