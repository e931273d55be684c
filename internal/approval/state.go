package approval

import (
	"github.com/frahmantamala/expense-approval/internal/expense"
	"github.com/frahmantamala/expense-approval/internal/rule"
)

// DeriveState computes the workflow state of an expense from its requests.
// rulesByID resolves the rule each request was built from; requests without a rule use the manager chain.
func DeriveState(e *expense.Expense, reqs []*Request, rulesByID map[int64]*rule.Rule) expense.State {
	if e.AutoApproved {
		return expense.State{Status: expense.StatusAutoApproved}
	}
	if len(reqs) == 0 {
		return expense.State{Status: expense.StatusSubmitted, TotalSteps: e.TotalSteps}
	}

	byStep := make(map[int][]*Request)
	for _, req := range reqs {
		byStep[req.Step] = append(byStep[req.Step], req)
	}

	for step := 1; step <= e.TotalSteps; step++ {
		stepReqs := byStep[step]
		if len(stepReqs) == 0 {
			return expense.State{Status: expense.StatusInProgress, CurrentStep: step, TotalSteps: e.TotalSteps}
		}

		var r *rule.Rule
		if id := stepReqs[0].RuleID; id != nil {
			r = rulesByID[*id]
		}

		switch EvaluateStep(r, stepReqs) {
		case StepFailed:
			return expense.State{Status: expense.StatusRejected, CurrentStep: step, TotalSteps: e.TotalSteps}
		case StepPending:
			return expense.State{Status: expense.StatusInProgress, CurrentStep: step, TotalSteps: e.TotalSteps}
		}
	}

	return expense.State{Status: expense.StatusApproved, TotalSteps: e.TotalSteps}
}

func indexRules(rules []*rule.Rule) map[int64]*rule.Rule {
	out := make(map[int64]*rule.Rule, len(rules))
	for _, r := range rules {
		out[r.ID] = r
	}
	return out
}
