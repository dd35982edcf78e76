// Package domain holds the active-work query result and the routing decision derived from it.
package domain

// Role is the session holder's side of an active work.
type Role string

const (
	RoleWorker   Role = "worker"
	RoleEmployer Role = "employer"
)

// Status is the lifecycle state of a work.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

// CompletionStatus records which parties have submitted their post-completion rating.
type CompletionStatus struct {
	EmployerConfirmed bool `json:"employerConfirmed"`
	WorkerConfirmed   bool `json:"workerConfirmed"`
}

// ActiveWork is one job the session holder takes part in.
type ActiveWork struct {
	WorkID           string           `json:"workId"`
	EmployerID       string           `json:"employerId"`
	WorkerID         string           `json:"workerId"`
	WorkTitle        string           `json:"workTitle"`
	ApplicationID    string           `json:"applicationId"`
	Status           Status           `json:"status"`
	CompletionStatus CompletionStatus `json:"completionStatus"`
}

// QueryResult is the body of GET /works/isWorkOpen.
type QueryResult struct {
	Role  Role         `json:"role"`
	Works []ActiveWork `json:"works"`
}

// First returns works[0]. Only the first active work is ever considered.
func (r *QueryResult) First() (ActiveWork, bool) {
	if r == nil || len(r.Works) == 0 {
		return ActiveWork{}, false
	}
	return r.Works[0], true
}
