package console

// RequestState is the state of the last mutation issued for one entity id.
type RequestState int

const (
	RequestIdle RequestState = iota
	RequestPending
	RequestFailed
)

func (s RequestState) String() string {
	switch s {
	case RequestPending:
		return "pending"
	case RequestFailed:
		return "failed"
	default:
		return "idle"
	}
}

// RequestTable maps entity ids to request state. At most one request per id
// may be pending; Begin refuses a second one. It is not safe for concurrent
// use and lives under its owner's lock.
type RequestTable struct {
	states map[int64]RequestState
}

// State returns the state for id, RequestIdle when unknown.
func (t *RequestTable) State(id int64) RequestState {
	return t.states[id]
}

// Pending reports whether a request for id is in flight.
func (t *RequestTable) Pending(id int64) bool {
	return t.states[id] == RequestPending
}

// Begin marks id pending. It returns false, changing nothing, when id is
// already pending.
func (t *RequestTable) Begin(id int64) bool {
	if t.Pending(id) {
		return false
	}
	if t.states == nil {
		t.states = map[int64]RequestState{}
	}
	t.states[id] = RequestPending
	return true
}

// Succeed returns id to idle.
func (t *RequestTable) Succeed(id int64) {
	delete(t.states, id)
}

// Fail records a failed request for id.
func (t *RequestTable) Fail(id int64) {
	if t.states == nil {
		t.states = map[int64]RequestState{}
	}
	t.states[id] = RequestFailed
}

// Reset forgets every id.
func (t *RequestTable) Reset() {
	t.states = nil
}

// Snapshot copies the non-idle entries.
func (t *RequestTable) Snapshot() map[int64]RequestState {
	out := make(map[int64]RequestState, len(t.states))
	for id, s := range t.states {
		out[id] = s
	}
	return out
}
