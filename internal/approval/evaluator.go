package approval

import (
	"github.com/frahmantamala/expense-approval/internal/rule"
	"github.com/shopspring/decimal"
)

type StepResult int

const (
	StepPending StepResult = iota
	StepCompleted
	StepFailed
)

func (r StepResult) String() string {
	switch r {
	case StepCompleted:
		return "completed"
	case StepFailed:
		return "failed"
	}
	return "pending"
}

var hundred = decimal.NewFromInt(100)

// tally counts a step's requests. The pool counters only cover requests owed to
// the approver pool, so a fixed approver outside the pool never moves the percentage.
type tally struct {
	anyApproved, anyRejected     bool
	fixedApproved, fixedRejected bool
	pool, poolApproved, poolOpen int
}

func count(r *rule.Rule, reqs []*Request) tally {
	var t tally
	for _, req := range reqs {
		fixed := r != nil && r.ApproverID != nil && *r.ApproverID == req.ApproverID
		inPool := req.InPool || !fixed
		if inPool {
			t.pool++
		}
		switch {
		case req.Status == StatusApproved:
			t.anyApproved = true
			t.fixedApproved = t.fixedApproved || fixed
			if inPool {
				t.poolApproved++
			}
		case req.Rejected():
			t.anyRejected = true
			t.fixedRejected = t.fixedRejected || fixed
		case req.IsPending():
			if inPool {
				t.poolOpen++
			}
		}
	}
	return t
}

// meets reports n/total >= p, computed as n*100 >= p*total to stay exact.
func meets(n, total int, p decimal.Decimal) bool {
	if total == 0 {
		return false
	}
	return decimal.NewFromInt(int64(n)).Mul(hundred).GreaterThanOrEqual(p.Mul(decimal.NewFromInt(int64(total))))
}

// EvaluateStep decides a step from the requests materialized for it. A nil rule is the
// implicit manager chain. Completion is checked before failure.
func EvaluateStep(r *rule.Rule, reqs []*Request) StepResult {
	t := count(r, reqs)

	if r == nil {
		switch {
		case t.anyApproved:
			return StepCompleted
		case t.anyRejected:
			return StepFailed
		}
		return StepPending
	}

	var pctMet, pctUnreachable bool
	if r.PercentageRequired != nil {
		p := *r.PercentageRequired
		pctMet = meets(t.poolApproved, t.pool, p)
		pctUnreachable = !meets(t.poolApproved+t.poolOpen, t.pool, p)
	}

	switch r.Kind() {
	case rule.KindFixed:
		if t.fixedApproved {
			return StepCompleted
		}
		if t.fixedRejected {
			return StepFailed
		}
	case rule.KindPercentage:
		if pctMet {
			return StepCompleted
		}
		if pctUnreachable {
			return StepFailed
		}
	case rule.KindHybrid:
		if t.fixedApproved || pctMet {
			return StepCompleted
		}
		// Fails only once neither the fixed approver nor the pool can complete it.
		if t.fixedRejected && pctUnreachable {
			return StepFailed
		}
	case rule.KindCombined:
		if t.fixedApproved && pctMet {
			return StepCompleted
		}
		if t.anyRejected {
			return StepFailed
		}
	}
	return StepPending
}
