package control

import "sync"

// lanes runs work for the same key one at a time, in the order enter was
// called. Different keys do not wait for each other.
type lanes struct {
	mu   sync.Mutex
	tail map[string]chan struct{}
}

func newLanes() *lanes {
	return &lanes{tail: make(map[string]chan struct{})}
}

// ticket is a place in a lane
type ticket struct {
	l    *lanes
	key  string
	prev chan struct{}
	done chan struct{}
}

// enter queues behind whatever is already in the lane for key
func (l *lanes) enter(key string) *ticket {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := &ticket{l: l, key: key, prev: l.tail[key], done: make(chan struct{})}
	l.tail[key] = t.done
	return t
}

// wait blocks until every earlier ticket in the lane has left
func (t *ticket) wait() {
	if t.prev != nil {
		<-t.prev
	}
}

// leave lets the next ticket run
func (t *ticket) leave() {
	t.l.mu.Lock()
	if t.l.tail[t.key] == t.done {
		delete(t.l.tail, t.key)
	}
	t.l.mu.Unlock()
	close(t.done)
}

// laneKey is the monitor a command acts on, or "" for daemon-wide commands
func laneKey(msg Message) string {
	if msg.Playlist == nil {
		return ""
	}
	return msg.Playlist.Monitor.Name
}
