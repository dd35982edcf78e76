package engine

import (
	"context"
	"reflect"
	"testing"

	"gig-marketplace/client/internal/work/domain"
)

type ruleCase struct {
	name string
	role domain.Role
	work domain.ActiveWork
	want domain.RoutingDecision
}

func work(status domain.Status, workerConfirmed, employerConfirmed bool) domain.ActiveWork {
	return domain.ActiveWork{
		WorkID:        "j1",
		EmployerID:    "e1",
		WorkerID:      "w1",
		WorkTitle:     "Paint fence",
		ApplicationID: "a1",
		Status:        status,
		CompletionStatus: domain.CompletionStatus{
			WorkerConfirmed:   workerConfirmed,
			EmployerConfirmed: employerConfirmed,
		},
	}
}

func ruleCases() []ruleCase {
	rateEmployer := domain.Rate(domain.RateCounterparty{TargetUserID: "e1", WorkID: "j1", RatingSubjectRole: domain.RoleEmployer})
	rateWorker := domain.Rate(domain.RateCounterparty{TargetUserID: "w1", WorkID: "j1", RatingSubjectRole: domain.RoleWorker})
	resume := domain.Resume(domain.ResumeInProgressWork{WorkID: "j1", ApplicationID: "a1", WorkTitle: "Paint fence"})

	return []ruleCase{
		{"worker unconfirmed outranks in progress", domain.RoleWorker, work(domain.StatusInProgress, false, true), rateEmployer},
		{"worker unconfirmed on closed work", domain.RoleWorker, work(domain.StatusClosed, false, false), rateEmployer},
		{"employer unconfirmed outranks in progress", domain.RoleEmployer, work(domain.StatusInProgress, true, false), rateWorker},
		{"employer ignores worker flag", domain.RoleEmployer, work(domain.StatusOpen, false, false), rateWorker},
		{"worker confirmed, in progress", domain.RoleWorker, work(domain.StatusInProgress, true, false), resume},
		{"employer confirmed, in progress", domain.RoleEmployer, work(domain.StatusInProgress, false, true), resume},
		{"both confirmed, open", domain.RoleWorker, work(domain.StatusOpen, true, true), domain.NoAction()},
		{"both confirmed, closed", domain.RoleEmployer, work(domain.StatusClosed, true, true), domain.NoAction()},
		{"unknown role, in progress", domain.Role("admin"), work(domain.StatusInProgress, false, false), resume},
	}
}

func TestRuleEvaluator(t *testing.T) {
	for _, tc := range ruleCases() {
		t.Run(tc.name, func(t *testing.T) {
			got, err := RuleEvaluator{}.Evaluate(context.Background(), tc.role, tc.work)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Evaluate = %+v, want %+v", got, tc.want)
			}
			if !got.Valid() {
				t.Errorf("decision %+v is not a single variant", got)
			}
		})
	}
}

func TestOPAEvaluator_MatchesNativeRules(t *testing.T) {
	e, err := NewOPAEvaluator("")
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	for _, tc := range ruleCases() {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.eval(context.Background(), tc.role, tc.work)
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("OPA = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e, err := NewOPAEvaluator("")
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_FallsBackToNativeRules(t *testing.T) {
	testCases := []struct {
		name   string
		policy string
	}{
		{"unknown kind", "package gig.routing\n\ndecision := {\"kind\": \"teleport\"}\n"},
		{"undefined decision", "package other.routing\n\ndecision := {\"kind\": \"no_action_required\"}\n"},
		{"non-object decision", "package gig.routing\n\ndecision := \"rate\"\n"},
	}
	w := work(domain.StatusInProgress, false, true)
	want := Decide(domain.RoleWorker, w)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, err := NewOPAEvaluator(tc.policy)
			if err != nil {
				t.Fatalf("NewOPAEvaluator: %v", err)
			}
			if err := e.HealthCheck(context.Background()); err == nil {
				t.Error("HealthCheck should fail for a broken policy")
			}
			got, err := e.Evaluate(context.Background(), domain.RoleWorker, w)
			if err != nil {
				t.Fatalf("Evaluate should not return the policy error: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Evaluate = %+v, want native %+v", got, want)
			}
		})
	}
}

func TestNewOPAEvaluator_InvalidPolicy(t *testing.T) {
	if _, err := NewOPAEvaluator("package gig.routing\n\ndecision := {"); err == nil {
		t.Error("expected compile error")
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	if e, err := New(ctx, "native"); err != nil || !isNative(e) {
		t.Errorf("New(native) = %T, %v", e, err)
	}
	if e, err := New(ctx, ""); err != nil || !isNative(e) {
		t.Errorf("New(\"\") = %T, %v", e, err)
	}
	if e, err := New(ctx, "opa"); err != nil {
		t.Errorf("New(opa): %v", err)
	} else if _, ok := e.(*OPAEvaluator); !ok {
		t.Errorf("New(opa) = %T, want *OPAEvaluator", e)
	}
	if _, err := New(ctx, "lua"); err == nil {
		t.Error("New(lua) should fail")
	}
}

func isNative(e Evaluator) bool {
	_, ok := e.(RuleEvaluator)
	return ok
}
