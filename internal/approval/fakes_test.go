package approval_test

import (
	"context"
	"sort"
	"sync"

	"github.com/frahmantamala/expense-approval/internal/core/events"
	"github.com/frahmantamala/expense-approval/internal/rule"
	"github.com/frahmantamala/expense-approval/internal/user"
	"github.com/shopspring/decimal"
)

type fakeRules struct {
	byCompany map[int64][]*rule.Rule
	nextID    int64
}

func newFakeRules() *fakeRules {
	return &fakeRules{byCompany: map[int64][]*rule.Rule{}, nextID: 1}
}

func (f *fakeRules) add(companyID int64, r *rule.Rule) *rule.Rule {
	r.ID = f.nextID
	f.nextID++
	r.CompanyID = companyID
	r.Step = len(f.byCompany[companyID]) + 1
	f.byCompany[companyID] = append(f.byCompany[companyID], r)
	return r
}

func (f *fakeRules) RulesFor(_ context.Context, companyID int64) ([]*rule.Rule, error) {
	return f.byCompany[companyID], nil
}

func (f *fakeRules) RuleForStep(_ context.Context, companyID int64, step int) (*rule.Rule, error) {
	for _, r := range f.byCompany[companyID] {
		if r.Step == step {
			return r, nil
		}
	}
	return nil, nil
}

type fakeDirectory struct {
	users map[int64]*user.User
	pools map[int][]int64
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: map[int64]*user.User{}, pools: map[int][]int64{}}
}

func (f *fakeDirectory) add(id, companyID int64, managerID *int64) *user.User {
	u := &user.User{ID: id, CompanyID: companyID, ManagerID: managerID, IsActive: true}
	f.users[id] = u
	return u
}

func (f *fakeDirectory) ManagerOf(_ context.Context, userID int64) (*user.User, error) {
	u := f.users[userID]
	if u == nil || u.ManagerID == nil {
		return nil, nil
	}
	return f.users[*u.ManagerID], nil
}

func (f *fakeDirectory) ApproverPool(_ context.Context, _ int64, step int) ([]int64, error) {
	return f.pools[step], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.ExpenseEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(*events.ExpenseEvent))
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

func ptr(v int64) *int64 { return &v }

func percent(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func sortedApprovers(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
