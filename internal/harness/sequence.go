package harness

import "sync/atomic"

// sequence hands out trial sequence numbers 1, 2, 3, ... at dispatch, so
// numbers follow submission order even when trials finish out of order.
type sequence struct {
	n atomic.Int64
}

func (s *sequence) next() int64 {
	return s.n.Add(1)
}
