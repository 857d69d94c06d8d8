package ir

import "time"

// Step names, in execution order.
const (
	StepZone      = "zone"
	StepBucket    = "bucket"
	StepUpload    = "upload"
	StepWebsite   = "website"
	StepSettle    = "settle"
	StepRecord    = "record"
	StepPropagate = "propagate"
)

// Outcome of a single deployment step.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
)

// StepResult records what happened in one step.
type StepResult struct {
	Step     string
	Outcome  Outcome
	Detail   string
	Err      error
	Duration time.Duration
}

// DeployReport is the typed result of a deployment run.
type DeployReport struct {
	Website  *Website
	Zone     HostedZone
	Bucket   Bucket
	ChangeID string
	Status   ChangeStatus
	Steps    []StepResult
}

// Record appends a step result.
func (r *DeployReport) Record(step StepResult) {
	r.Steps = append(r.Steps, step)
}

// Step returns the result for the named step, if it ran.
func (r *DeployReport) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Degraded reports whether any step failed or only partially succeeded.
func (r *DeployReport) Degraded() bool {
	for _, s := range r.Steps {
		if s.Outcome == OutcomeDegraded || s.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}
