package backoff

import "time"

// Schedule doubles its delay on every Next call, from Min up to Max.
// Reset starts over at Min.
type Schedule struct {
	Min time.Duration
	Max time.Duration

	attempt int
}

func (s *Schedule) Next() time.Duration {
	min, max := s.Min, s.Max
	if min <= 0 {
		min = time.Second
	}

	if max < min {
		max = min
	}

	delay := min
	for i := 0; i < s.attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}

	s.attempt++
	return delay
}

func (s *Schedule) Reset() {
	s.attempt = 0
}
