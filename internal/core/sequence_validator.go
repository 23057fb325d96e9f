package core

import "fmt"

// SequenceValidator enforces per-partition source ordering. Pool partitions
// are strict: a gap or an out-of-order new event is an error, because bridge
// and wallet events are causally ordered. Feed partitions (rates, app
// positions) tolerate gaps: a later reading supersedes anything missed.
// Not thread-safe — only accessed from the single-threaded core.
type SequenceValidator struct {
	expectedNextSeq map[string]int64

	gaps       map[string]int64
	outOfOrder map[string]int64
	feedGaps   map[string]int64
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		expectedNextSeq: make(map[string]int64),
		gaps:            make(map[string]int64),
		outOfOrder:      make(map[string]int64),
		feedGaps:        make(map[string]int64),
	}
}

// ValidateSequence checks strict ordering for a pool partition.
func (sv *SequenceValidator) ValidateSequence(partition string, sourceSequence int64, isDuplicate bool) error {
	expected := sv.expectedNextSeq[partition]

	switch {
	case sourceSequence < expected:
		if isDuplicate {
			return nil
		}
		sv.outOfOrder[partition]++
		return fmt.Errorf("out-of-order event: partition=%s, expected=%d, got=%d", partition, expected, sourceSequence)
	case sourceSequence == expected:
		sv.expectedNextSeq[partition] = expected + 1
		return nil
	default:
		sv.gaps[partition]++
		return fmt.Errorf("sequence gap: partition=%s, expected=%d, got=%d", partition, expected, sourceSequence)
	}
}

// ValidateFeedSequence checks a gap-tolerant feed partition. Readings older
// than the last applied one are silently ignored; gaps are counted but
// accepted. A reading at exactly the expected next sequence is fresh, so a
// dense consecutive feed loses nothing.
func (sv *SequenceValidator) ValidateFeedSequence(partition string, sourceSequence int64) (stale bool) {
	expected := sv.expectedNextSeq[partition]
	if sourceSequence < expected {
		return true
	}
	if expected > 0 && sourceSequence > expected {
		sv.feedGaps[partition]++
	}
	sv.expectedNextSeq[partition] = sourceSequence + 1
	return false
}

// ExpectedSequence returns the next expected sequence for a partition.
func (sv *SequenceValidator) ExpectedSequence(partition string) int64 {
	return sv.expectedNextSeq[partition]
}

// SetExpectedSequence seeds a partition during recovery.
func (sv *SequenceValidator) SetExpectedSequence(partition string, seq int64) {
	sv.expectedNextSeq[partition] = seq
}

// Partitions lists known partitions for snapshotting; order is unspecified.
func (sv *SequenceValidator) Partitions() map[string]int64 {
	out := make(map[string]int64, len(sv.expectedNextSeq))
	for k, v := range sv.expectedNextSeq {
		out[k] = v
	}
	return out
}

// FeedGaps returns the gap count for a feed partition.
func (sv *SequenceValidator) FeedGaps(partition string) int64 {
	return sv.feedGaps[partition]
}
