package contracts

import (
	"time"
)

// InvocationRecord is the timed outcome of one call. It is filled in
// progressively while the call runs and never modified once completed.
type InvocationRecord struct {
	ID        string          `json:"id"`
	Key       InvocationKey   `json:"key"`
	Arguments []any           `json:"arguments,omitempty"`
	Begin     time.Time       `json:"begin"`
	End       time.Time       `json:"end"`
	Err       error           `json:"-"`
	Error     string          `json:"error,omitempty"`
	Result    any             `json:"result,omitempty"`
	State     InvocationState `json:"state"`
}

// NewInvocationRecord starts a record for the given invocation
func NewInvocationRecord(inv Invocation, begin time.Time) *InvocationRecord {
	return &InvocationRecord{
		ID:        inv.ID(),
		Key:       inv.Key(),
		Arguments: append([]any(nil), inv.Arguments()...),
		Begin:     begin,
		State:     StateRunning,
	}
}

// Complete stores the outcome. Exactly one of result or err is kept: a failed
// call never carries a result.
func (r *InvocationRecord) Complete(end time.Time, result any, err error) {
	if end.Before(r.Begin) {
		end = r.Begin
	}
	r.End = end

	if err != nil {
		r.Err = err
		r.Error = err.Error()
		r.Result = nil
		r.State = StateFailed
		return
	}

	r.Result = result
	r.State = StateSucceeded
}

// Elapsed returns End - Begin
func (r *InvocationRecord) Elapsed() time.Duration {
	return r.End.Sub(r.Begin)
}

// ElapsedMilliseconds returns the elapsed time as fractional milliseconds
func (r *InvocationRecord) ElapsedMilliseconds() float64 {
	return float64(r.Elapsed()) / float64(time.Millisecond)
}

// Succeeded returns true when the target completed without failure
func (r *InvocationRecord) Succeeded() bool {
	return r.State == StateSucceeded
}

// Completed returns true once the record reached a terminal state
func (r *InvocationRecord) Completed() bool {
	return r.State.IsTerminal()
}
