package presence

import "sync"

// Registry tracks which connections are viewing which project. It keeps two
// mappings: projectId -> member set, and connectionId -> projectId for O(1)
// cleanup on disconnect. Rooms are locked individually so operations on
// unrelated projects do not contend.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room

	reverseMu sync.Mutex
	reverse   map[string]string
}

type room struct {
	mu      sync.Mutex
	evicted bool
	members map[string]Member
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]*room),
		reverse: make(map[string]string),
	}
}

// Associate adds the connection to the project's member set and points the
// reverse index at it. Re-associating an already-present connection refreshes
// its metadata instead of duplicating it. The returned slice is the member
// set immediately after the insert, copied while the room lock is still held,
// so the caller's snapshot and joined-notification agree about membership.
//
// The caller is responsible for dissociating any prior room first.
func (r *Registry) Associate(connectionId string, projectId string, member Member) []Member {
	r.reverseMu.Lock()
	r.reverse[connectionId] = projectId
	r.reverseMu.Unlock()

	for {
		rm := r.roomForInsert(projectId)

		rm.mu.Lock()
		if rm.evicted {
			rm.mu.Unlock()
			r.dropRoom(projectId, rm)

			continue
		}

		rm.members[connectionId] = member
		snapshot := rm.snapshotLocked()
		rm.mu.Unlock()

		return snapshot
	}
}

// Dissociate removes the connection's reverse index entry and its room
// membership, and reports which room it was in. Rooms left empty are removed
// entirely. Calling it for an unknown connection is a no-op.
func (r *Registry) Dissociate(connectionId string) (string, Member, bool) {
	r.reverseMu.Lock()
	projectId, ok := r.reverse[connectionId]
	delete(r.reverse, connectionId)
	r.reverseMu.Unlock()

	if !ok {
		return "", Member{}, false
	}

	r.mu.RLock()
	rm := r.rooms[projectId]
	r.mu.RUnlock()

	if rm == nil {
		return "", Member{}, false
	}

	rm.mu.Lock()
	member, present := rm.members[connectionId]
	delete(rm.members, connectionId)
	if len(rm.members) == 0 {
		rm.evicted = true
	}
	evicted := rm.evicted
	rm.mu.Unlock()

	if evicted {
		r.dropRoom(projectId, rm)
	}

	if !present {
		return "", Member{}, false
	}

	return projectId, member, true
}

// Members returns a copy of the project's current member set, nil when the
// project has no tracked members.
func (r *Registry) Members(projectId string) []Member {
	r.mu.RLock()
	rm := r.rooms[projectId]
	r.mu.RUnlock()

	if rm == nil {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.evicted {
		return nil
	}

	return rm.snapshotLocked()
}

// Room reports which project the connection is currently associated with.
func (r *Registry) Room(connectionId string) (string, bool) {
	r.reverseMu.Lock()
	defer r.reverseMu.Unlock()

	projectId, ok := r.reverse[connectionId]

	return projectId, ok
}

func (r *Registry) roomForInsert(projectId string) *room {
	r.mu.RLock()
	rm := r.rooms[projectId]
	r.mu.RUnlock()

	if rm != nil {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rm = r.rooms[projectId]; rm == nil {
		rm = &room{members: make(map[string]Member)}
		r.rooms[projectId] = rm
	}

	return rm
}

// dropRoom removes the mapping for an evicted room. A new room under the same
// projectId may already have replaced it, so the pointer is compared first.
func (r *Registry) dropRoom(projectId string, rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[projectId] == rm {
		delete(r.rooms, projectId)
	}
}

func (rm *room) snapshotLocked() []Member {
	members := make([]Member, 0, len(rm.members))
	for _, member := range rm.members {
		members = append(members, member)
	}

	return members
}
