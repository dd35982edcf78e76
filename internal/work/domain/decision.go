package domain

// DecisionKind tags which RoutingDecision variant is populated.
type DecisionKind string

const (
	KindNoAction             DecisionKind = "no_action_required"
	KindRateCounterparty     DecisionKind = "rate_counterparty"
	KindResumeInProgressWork DecisionKind = "resume_in_progress_work"
)

// RateCounterparty asks the session holder to rate the other party before anything else.
type RateCounterparty struct {
	TargetUserID      string `json:"targetUserId"`
	WorkID            string `json:"workId"`
	RatingSubjectRole Role   `json:"ratingSubjectRole"`
}

// ResumeInProgressWork offers to jump to a work that is still running.
type ResumeInProgressWork struct {
	WorkID        string `json:"workId"`
	ApplicationID string `json:"applicationId"`
	WorkTitle     string `json:"workTitle"`
}

// RoutingDecision is exactly one of its variants. Build it with NoAction, Rate or Resume;
// the payload pointer matching Kind is the only one set.
type RoutingDecision struct {
	Kind   DecisionKind
	Rating *RateCounterparty
	Resume *ResumeInProgressWork
}

// NoAction returns the NoActionRequired decision.
func NoAction() RoutingDecision {
	return RoutingDecision{Kind: KindNoAction}
}

// Rate returns a RateCounterparty decision.
func Rate(p RateCounterparty) RoutingDecision {
	return RoutingDecision{Kind: KindRateCounterparty, Rating: &p}
}

// Resume returns a ResumeInProgressWork decision.
func Resume(p ResumeInProgressWork) RoutingDecision {
	return RoutingDecision{Kind: KindResumeInProgressWork, Resume: &p}
}

// Valid reports whether exactly the payload matching Kind is set.
func (d RoutingDecision) Valid() bool {
	switch d.Kind {
	case KindNoAction:
		return d.Rating == nil && d.Resume == nil
	case KindRateCounterparty:
		return d.Rating != nil && d.Resume == nil
	case KindResumeInProgressWork:
		return d.Resume != nil && d.Rating == nil
	}
	return false
}
