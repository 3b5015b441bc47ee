package sm

import (
	"github.com/pkg/errors"
)

// procStore holds the in-flight procedures, addressable by connection
// and expected state. In practice a connection has at most one
// procedure, but the lookup filter keeps concurrent sub-steps
// unambiguous. The store has no lock of its own: every
// lookup/mutate/produce-result sequence runs under the Manager mutex.
type procStore struct {
	max   int
	procs map[uint16][]*proc
	count int
}

func newProcStore(max int) *procStore {
	return &procStore{max: max, procs: make(map[uint16][]*proc)}
}

// find returns the first procedure for conn whose state matches want;
// stateAny matches every state. Nil when nothing matches.
func (s *procStore) find(conn uint16, want State) *proc {
	for _, p := range s.procs[conn] {
		if want == stateAny || p.state == want {
			return p
		}
	}
	return nil
}

func (s *procStore) insert(p *proc) error {
	if s.count >= s.max {
		return errors.Wrapf(ErrResourceExhausted, "%d procedures in flight", s.count)
	}

	s.procs[p.conn] = append(s.procs[p.conn], p)
	s.count++
	return nil
}

func (s *procStore) remove(p *proc) {
	list := s.procs[p.conn]
	for i, q := range list {
		if q == p {
			s.procs[p.conn] = append(list[:i], list[i+1:]...)
			s.count--
			break
		}
	}
	if len(s.procs[p.conn]) == 0 {
		delete(s.procs, p.conn)
	}
}

// removeConn drops every procedure owned by conn and returns them so
// the caller can report terminal outcomes.
func (s *procStore) removeConn(conn uint16) []*proc {
	list := s.procs[conn]
	delete(s.procs, conn)
	s.count -= len(list)
	return list
}
