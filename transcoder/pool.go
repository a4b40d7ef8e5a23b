package transcoder

import "sync"

const maxPooledSlots = 1024

// Narrowed payload slots of a flat variant case.
var slotPool = sync.Pool{
	New: func() any {
		s := make([]uint64, 0, 16)
		return &s
	},
}

func getSlots() *[]uint64 {
	return slotPool.Get().(*[]uint64)
}

func putSlots(s *[]uint64) {
	if s == nil || cap(*s) > maxPooledSlots {
		return
	}
	*s = (*s)[:0]
	slotPool.Put(s)
}
