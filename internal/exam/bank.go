package exam

import (
	"github.com/antzucaro/matchr"
)

// SignatureSet is the set of signatures seen during a run, it only ever grows.
type SignatureSet struct {
	seen map[string]struct{}
}

func NewSignatureSet() *SignatureSet {
	return &SignatureSet{seen: map[string]struct{}{}}
}

// Add inserts `signature` and reports whether it was new.
func (s *SignatureSet) Add(signature string) bool {
	_, exists := s.seen[signature]
	if exists {
		return false
	}
	s.seen[signature] = struct{}{}
	return true
}

func (s *SignatureSet) Contains(signature string) bool {
	_, exists := s.seen[signature]
	return exists
}

func (s *SignatureSet) Len() int {
	return len(s.seen)
}

// Bank is the ordered list of unique questions accumulated over every attempt of a run.
// No two questions in a bank share a signature.
type Bank struct {
	signatures *SignatureSet
	questions  []Question
}

func NewBank() *Bank {
	return &Bank{signatures: NewSignatureSet()}
}

// Add appends `q` unless a question with the same signature is already banked, it reports
// whether `q` was appended. Questions without a signature are never banked.
func (b *Bank) Add(q Question) bool {
	if q.Signature == "" {
		return false
	}
	if !b.signatures.Add(q.Signature) {
		return false
	}
	b.questions = append(b.questions, q)
	return true
}

func (b *Bank) Len() int {
	return len(b.questions)
}

// Questions returns a copy of the banked questions in the order they were first seen.
func (b *Bank) Questions() []Question {
	out := make([]Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// Similar looks for a banked question with a different signature whose text is at least
// `threshold` similar (Jaro-Winkler) to `q`'s text.
func (b *Bank) Similar(q Question, threshold float64) (Question, float64, bool) {
	var best Question
	var bestScore float64
	for _, other := range b.questions {
		if other.Signature == q.Signature {
			continue
		}
		score := matchr.JaroWinkler(q.Text, other.Text, false)
		if score > bestScore {
			bestScore = score
			best = other
		}
	}
	if bestScore < threshold {
		return Question{}, 0, false
	}
	return best, bestScore, true
}
