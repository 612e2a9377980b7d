package runner

import (
	"sort"
	"sync"
	"time"

	"github.com/quailyquaily/lwherd/lwapi"
)

// Active is one logged-in account's live handle.
type Active struct {
	Wxid      string
	Remark    string
	Client    *lwapi.Client
	StartedAt time.Time
}

// Registry is the process-wide index of logged-in accounts, keyed by wxid.
// The orchestrator owns it and injects it into each supervisor; entries exist
// only between login success and task teardown.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Active
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*Active)}
}

func (r *Registry) Put(a *Active) {
	if a == nil || a.Wxid == "" {
		return
	}
	r.mu.Lock()
	r.active[a.Wxid] = a
	r.mu.Unlock()
}

func (r *Registry) Remove(wxid string) {
	r.mu.Lock()
	delete(r.active, wxid)
	r.mu.Unlock()
}

func (r *Registry) Get(wxid string) (*Active, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.active[wxid]
	return a, ok
}

// List returns a snapshot sorted by wxid.
func (r *Registry) List() []*Active {
	r.mu.Lock()
	out := make([]*Active, 0, len(r.active))
	for _, a := range r.active {
		out = append(out, a)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Wxid < out[j].Wxid })
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
