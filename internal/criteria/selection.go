package criteria

import (
	"errors"
	"fmt"

	"github.com/alfredjeanlab/eligibility/internal/model"
)

// ErrIndexOutOfRange is returned by Strategy mutations given an index outside
// the candidate list.
var ErrIndexOutOfRange = errors.New("index out of range")

// Candidate is a payload guarded by a Criteria. A nil Criteria matches every
// context.
type Candidate[T any] struct {
	Payload  T
	Criteria *model.Criteria
}

// Strategy is an ordered list of candidates. Order is priority: the first
// candidate whose Criteria matches is selected and later ones are not
// evaluated. Persisting the order and each candidate's Criteria is the
// owner's job.
type Strategy[T any] struct {
	candidates []Candidate[T]
}

// NewStrategy returns a Strategy over a copy of candidates.
func NewStrategy[T any](candidates ...Candidate[T]) *Strategy[T] {
	return &Strategy[T]{candidates: append([]Candidate[T](nil), candidates...)}
}

// Len returns the number of candidates.
func (s *Strategy[T]) Len() int { return len(s.candidates) }

// Candidates returns a copy of the candidate list in priority order.
func (s *Strategy[T]) Candidates() []Candidate[T] {
	return append([]Candidate[T](nil), s.candidates...)
}

// Select returns the payload of the first candidate that matches cc. The
// boolean is false when nothing matches, in which case the payload is the
// zero value.
func (s *Strategy[T]) Select(cc model.ClientContext) (T, bool) {
	return SelectFirst(s.candidates, cc)
}

// MatchAll returns the payloads of every matching candidate, in order.
func (s *Strategy[T]) MatchAll(cc model.ClientContext) []T {
	return MatchAll(s.candidates, cc)
}

// Append adds a candidate at the lowest priority.
func (s *Strategy[T]) Append(c Candidate[T]) {
	s.candidates = append(s.candidates, c)
}

// Insert places a candidate at index i, shifting later candidates down.
// i may equal Len to append.
func (s *Strategy[T]) Insert(i int, c Candidate[T]) error {
	if i < 0 || i > len(s.candidates) {
		return fmt.Errorf("insert at %d of %d: %w", i, len(s.candidates), ErrIndexOutOfRange)
	}
	s.candidates = append(s.candidates, Candidate[T]{})
	copy(s.candidates[i+1:], s.candidates[i:])
	s.candidates[i] = c
	return nil
}

// Remove deletes and returns the candidate at index i.
func (s *Strategy[T]) Remove(i int) (Candidate[T], error) {
	if i < 0 || i >= len(s.candidates) {
		return Candidate[T]{}, fmt.Errorf("remove %d of %d: %w", i, len(s.candidates), ErrIndexOutOfRange)
	}
	removed := s.candidates[i]
	s.candidates = append(s.candidates[:i], s.candidates[i+1:]...)
	return removed, nil
}

// Move relocates the candidate at from so that it ends up at index to.
func (s *Strategy[T]) Move(from, to int) error {
	n := len(s.candidates)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move %d to %d of %d: %w", from, to, n, ErrIndexOutOfRange)
	}
	c, _ := s.Remove(from)
	return s.Insert(to, c)
}

// SelectFirst returns the payload of the first candidate in candidates whose
// Criteria matches cc.
func SelectFirst[T any](candidates []Candidate[T], cc model.ClientContext) (T, bool) {
	for _, c := range candidates {
		if Matches(c.Criteria, cc) {
			return c.Payload, true
		}
	}
	var zero T
	return zero, false
}

// MatchAll returns the payloads of every candidate whose Criteria matches cc,
// preserving order.
func MatchAll[T any](candidates []Candidate[T], cc model.ClientContext) []T {
	var out []T
	for _, c := range candidates {
		if Matches(c.Criteria, cc) {
			out = append(out, c.Payload)
		}
	}
	return out
}
