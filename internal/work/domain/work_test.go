package domain

import (
	"encoding/json"
	"testing"
)

func TestQueryResult_DecodesBackendShape(t *testing.T) {
	raw := `{"role":"employer","works":[{"workId":"j1","employerId":"e1","workerId":"w1","workTitle":"Paint fence",
		"applicationId":"a1","status":"in_progress","completionStatus":{"employerConfirmed":false,"workerConfirmed":true}},
		{"workId":"j2","status":"open"}]}`
	var res QueryResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	w, ok := res.First()
	if !ok {
		t.Fatal("First: no work")
	}
	if res.Role != RoleEmployer || w.WorkID != "j1" || w.Status != StatusInProgress {
		t.Errorf("decoded = %+v / %+v", res, w)
	}
	if w.CompletionStatus.EmployerConfirmed || !w.CompletionStatus.WorkerConfirmed {
		t.Errorf("completion = %+v", w.CompletionStatus)
	}
}

func TestQueryResult_FirstEmpty(t *testing.T) {
	var nilRes *QueryResult
	if _, ok := nilRes.First(); ok {
		t.Error("nil result should have no first work")
	}
	if _, ok := (&QueryResult{Role: RoleWorker}).First(); ok {
		t.Error("empty works should have no first work")
	}
}

func TestRoutingDecision_Constructors(t *testing.T) {
	testCases := []struct {
		name string
		d    RoutingDecision
		kind DecisionKind
	}{
		{"no action", NoAction(), KindNoAction},
		{"rate", Rate(RateCounterparty{TargetUserID: "w1", WorkID: "j1", RatingSubjectRole: RoleWorker}), KindRateCounterparty},
		{"resume", Resume(ResumeInProgressWork{WorkID: "j1"}), KindResumeInProgressWork},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.d.Kind != tc.kind {
				t.Errorf("Kind = %q, want %q", tc.d.Kind, tc.kind)
			}
			if !tc.d.Valid() {
				t.Errorf("%+v should be valid", tc.d)
			}
		})
	}
}

func TestRoutingDecision_Invalid(t *testing.T) {
	invalid := []RoutingDecision{
		{},
		{Kind: KindRateCounterparty},
		{Kind: KindNoAction, Resume: &ResumeInProgressWork{}},
		{Kind: KindResumeInProgressWork, Resume: &ResumeInProgressWork{}, Rating: &RateCounterparty{}},
	}
	for _, d := range invalid {
		if d.Valid() {
			t.Errorf("%+v should be invalid", d)
		}
	}
}
