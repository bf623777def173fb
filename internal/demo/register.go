package demo

import "github.com/pthm/livecmp"

// Deps are the backends used by the demo components.
type Deps struct {
	Users UserStore
	Stats StatsSource
	Home  string
}

// Register adds every demo component to reg. Missing deps fall back to
// in-memory implementations.
func Register(reg *livecmp.Registry, deps Deps) {
	if deps.Users == nil {
		deps.Users = NewMemoryUsers()
	}
	if deps.Stats == nil {
		deps.Stats = StaticStats{"visits": 1204, "signups": 87, "orders": 31}
	}
	if deps.Home == "" {
		deps.Home = "/"
	}
	reg.Add("counter", NewCounter)
	reg.Add("todos", NewTodoList)
	reg.Add("signup", NewSignup(deps.Users))
	reg.Add("login", NewLogin(deps.Users, deps.Home))
	reg.Add("stats", NewStats(deps.Stats))
	reg.Add("device", NewDevice)
}
