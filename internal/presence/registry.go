// Package presence tracks which display names are live in which group,
// keyed by websocket connection. State is process-local and rebuilt from
// connection traffic after a restart; nothing here touches storage.
package presence

import (
	"sort"
	"sync"
)

// Registry is the in-memory presence table. A user connected twice to the
// same group is counted per connection but listed once; the name drops out
// only when its last connection leaves.
type Registry struct {
	mu sync.RWMutex

	// connection ID -> groups it has joined
	conns map[string]map[string]struct{}

	// group ID -> display name -> live connection count
	groups map[string]map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]map[string]struct{}),
		groups: make(map[string]map[string]int),
	}
}

// Join records a connection entering a group and returns the group's updated
// roster. Joining the same group twice on one connection is a no-op.
func (r *Registry) Join(connID, groupID, displayName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.conns[connID]
	if !ok {
		joined = make(map[string]struct{})
		r.conns[connID] = joined
	}
	if _, dup := joined[groupID]; dup {
		return r.rosterLocked(groupID)
	}
	joined[groupID] = struct{}{}

	names, ok := r.groups[groupID]
	if !ok {
		names = make(map[string]int)
		r.groups[groupID] = names
	}
	names[displayName]++

	return r.rosterLocked(groupID)
}

// Leave records a connection exiting a group and returns the updated roster,
// which is empty when the last member left.
func (r *Registry) Leave(connID, groupID, displayName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(connID, groupID, displayName)
	return r.rosterLocked(groupID)
}

// Disconnect removes a connection from every group it had joined and returns
// the updated roster per affected group.
func (r *Registry) Disconnect(connID, displayName string) map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	affected := make(map[string][]string)
	for groupID := range r.conns[connID] {
		r.leaveLocked(connID, groupID, displayName)
		affected[groupID] = r.rosterLocked(groupID)
	}
	delete(r.conns, connID)
	return affected
}

// Roster returns the sorted display names currently in a group.
func (r *Registry) Roster(groupID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rosterLocked(groupID)
}

func (r *Registry) leaveLocked(connID, groupID, displayName string) {
	joined, ok := r.conns[connID]
	if !ok {
		return
	}
	if _, member := joined[groupID]; !member {
		return
	}
	delete(joined, groupID)

	names := r.groups[groupID]
	if names == nil {
		return
	}
	names[displayName]--
	if names[displayName] <= 0 {
		delete(names, displayName)
	}
	if len(names) == 0 {
		delete(r.groups, groupID)
	}
}

func (r *Registry) rosterLocked(groupID string) []string {
	names := r.groups[groupID]
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
