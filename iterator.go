package xorfilter

// KeyIterator abstracts a restartable, finite producer of uint64 keys with
// a known length ahead of time. Construction rewinds the iterator on every
// peel-failure retry, so implementations backed by storage rather than a
// slice must honour restartability: Next must return the first key again
// once it has signalled end-of-sequence, with no explicit Reset call from
// the caller. A non-restarting iterator silently corrupts construction.
type KeyIterator interface {
	// Next yields the next key, or (0, false) at end-of-sequence. After
	// returning false once, the following call must behave as if the
	// iterator had just been created.
	Next() (uint64, bool)

	// Len reports the total number of keys the iterator will produce in
	// one full pass.
	Len() int
}

// SliceIterator is the trivial restartable iterator over an in-memory
// slice of keys.
type SliceIterator struct {
	keys []uint64
	pos  int
}

// NewSliceIterator adapts a slice of keys into a KeyIterator.
func NewSliceIterator(keys []uint64) *SliceIterator {
	return &SliceIterator{keys: keys}
}

func (it *SliceIterator) Next() (uint64, bool) {
	if it.pos >= len(it.keys) {
		it.pos = 0
		return 0, false
	}
	k := it.keys[it.pos]
	it.pos++
	return k, true
}

func (it *SliceIterator) Len() int {
	return len(it.keys)
}

// deduper is implemented by iterators that can collapse their own backing
// storage to unique keys in place. PopulateXor/PopulateFuse8 use it as a
// last-resort rescue after repeated peel failures, the way the teacher's
// constructors call pruneDuplicates on their keys slice at iteration 10.
type deduper interface {
	dedupe() int
}

func (it *SliceIterator) dedupe() int {
	it.keys = AutoUnique(it.keys)
	it.pos = 0
	return len(it.keys)
}
