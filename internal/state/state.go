package state

import "sync/atomic"

// WorkingState is a togglable working flag shared by loop-like types.
type WorkingState struct {
	working uint32
}

// SetWorking sets the flag, or unsets it when called with false.
// swapped is false if the flag already was in the requested state.
func (s *WorkingState) SetWorking(to ...bool) (swapped bool) {
	setTo := true
	for _, setState := range to {
		if !setState {
			setTo = false
		}
	}
	if setTo {
		return atomic.CompareAndSwapUint32(&s.working, 0, 1)
	}
	return atomic.CompareAndSwapUint32(&s.working, 1, 0)
}

func (s *WorkingState) IsWorking() bool {
	return atomic.LoadUint32(&s.working) == 1
}

// EndState is a one-way transition into ended state.
type EndState struct {
	ended uint32
}

func (s *EndState) SetEnded() (swapped bool) {
	return atomic.CompareAndSwapUint32(&s.ended, 0, 1)
}

func (s *EndState) IsEnded() bool {
	return atomic.LoadUint32(&s.ended) == 1
}
