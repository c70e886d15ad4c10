package xorfilter

import "unsafe"

// Fuse8 is the classical fuse filter: the same <0.4% false-positive
// probability as Xor8, packed denser (~9.1 bits/entry vs ~9.9 bits/entry),
// at the cost of requiring a large number of keys to be operational —
// experimentally, somewhere north of 1e5. Below that, construction
// frequently fails to peel and Populate returns ErrKeysLikelyNotUnique
// even on a perfectly unique key set.
//
// Deprecated: BinaryFuse8 supersedes this construction — it reaches the
// same fill factor without the large-n requirement and tolerates
// duplicate keys during construction. Fuse8 is kept for historical
// completeness; new code should prefer BinaryFuse8.
//
// For more on the fuse graph data structure, see https://arxiv.org/abs/1907.04749.
type Fuse8 struct {
	Seed          uint64
	SegmentLength uint32
	Fingerprints  []uint8
}

type h012 struct {
	h0 uint32
	h1 uint32
	h2 uint32
}

const ARITY = 3
const SEGMENT_COUNT = 100
const SLOTS = SEGMENT_COUNT + ARITY - 1

// Contains returns true if key is part of the set with a false positive
// probability of <0.4%.
func (filter *Fuse8) Contains(key uint64) bool {
	hash := mixsplit(key, filter.Seed)
	f := uint8(fingerprint(hash))
	r0 := uint32(hash)
	r1 := uint32(rotl64(hash, 21))
	r2 := uint32(rotl64(hash, 42))
	r3 := uint32((0xBF58476D1CE4E5B9 * hash) >> 32)
	seg := reduce(r0, SEGMENT_COUNT)
	h0 := seg*filter.SegmentLength + reduce(r1, filter.SegmentLength)
	h1 := (seg+1)*filter.SegmentLength + reduce(r2, filter.SegmentLength)
	h2 := (seg+2)*filter.SegmentLength + reduce(r3, filter.SegmentLength)
	return f == (filter.Fingerprints[h0] ^ filter.Fingerprints[h1] ^
		filter.Fingerprints[h2])
}

// SizeInBytes reports fingerprint storage plus fixed struct overhead.
func (filter *Fuse8) SizeInBytes() int {
	return len(filter.Fingerprints) + int(unsafe.Sizeof(*filter))
}

// Close releases the filter's fingerprint storage, matching Xor[T].Close.
func (filter *Fuse8) Close() {
	filter.Fingerprints = nil
}

func (filter *Fuse8) makeKeyHashes(k uint64) hashes {
	hash := mixsplit(k, filter.Seed)
	answer := hashes{}
	answer.h = hash
	r0 := uint32(hash)
	r1 := uint32(rotl64(hash, 21))
	r2 := uint32(rotl64(hash, 42))
	r3 := uint32((0xBF58476D1CE4E5B9 * hash) >> 32)
	seg := reduce(r0, SEGMENT_COUNT)
	answer.h0 = (seg+0)*filter.SegmentLength + reduce(r1, filter.SegmentLength)
	answer.h1 = (seg+1)*filter.SegmentLength + reduce(r2, filter.SegmentLength)
	answer.h2 = (seg+2)*filter.SegmentLength + reduce(r3, filter.SegmentLength)
	return answer
}

func (filter *Fuse8) geth012(hash uint64) h012 {
	answer := h012{}
	r0 := uint32(hash)
	r1 := uint32(rotl64(hash, 21))
	r2 := uint32(rotl64(hash, 42))
	r3 := uint32((0xBF58476D1CE4E5B9 * hash) >> 32)
	seg := reduce(r0, SEGMENT_COUNT)
	answer.h0 = (seg+0)*filter.SegmentLength + reduce(r1, filter.SegmentLength)
	answer.h1 = (seg+1)*filter.SegmentLength + reduce(r2, filter.SegmentLength)
	answer.h2 = (seg+2)*filter.SegmentLength + reduce(r3, filter.SegmentLength)
	return answer
}

// PopulateFuse8 builds a Fuse8 filter from a restartable key iterator.
// The caller is responsible for ensuring there are no duplicate keys
// (Unique/AutoUnique can be used as a precondition pass); Populate will
// also try AutoUnique itself once, at iteration 10, as a rescue.
func PopulateFuse8(iter KeyIterator) (*Fuse8, error) {
	const FUSE_OVERHEAD = 1.0 / 0.879
	const FUSE_CONSTANT = 1024 // todo: determine value
	size := iter.Len()
	capacity := uint32(FUSE_OVERHEAD*float64(size) + FUSE_CONSTANT)
	capacity = capacity / SLOTS * SLOTS
	rngcounter := uint64(1)

	filter := &Fuse8{}
	filter.SegmentLength = capacity / SLOTS
	filter.Fingerprints = make([]uint8, capacity)
	filter.Seed = splitmix64(&rngcounter)

	H := make([]xorset, capacity)
	Q := make([]keyindex, capacity)
	stack := make([]keyindex, size)
	iterations := 0
	for {
		iterations++
		if iterations > MaxIterations {
			return nil, ErrKeysLikelyNotUnique
		}

		for {
			key, ok := iter.Next()
			if !ok {
				break
			}
			hs := filter.makeKeyHashes(key)
			H[hs.h0].xormask ^= hs.h
			H[hs.h0].count++
			H[hs.h1].xormask ^= hs.h
			H[hs.h1].count++
			H[hs.h2].xormask ^= hs.h
			H[hs.h2].count++
		}

		Qsize := 0
		for i := uint32(0); i < capacity; i++ {
			if H[i].count == 1 {
				Q[Qsize].index = i
				Q[Qsize].hash = H[i].xormask
				Qsize++
			}
		}

		stacksize := 0
		for Qsize > 0 {
			Qsize--
			ki := Q[Qsize]
			index := ki.index
			if H[index].count == 0 {
				continue
			}

			hash := ki.hash
			hs := filter.geth012(hash)

			stack[stacksize] = ki
			stacksize++

			H[hs.h0].xormask ^= hash
			H[hs.h0].count--
			if H[hs.h0].count == 1 {
				Q[Qsize].index = hs.h0
				Q[Qsize].hash = H[hs.h0].xormask
				Qsize++
			}
			H[hs.h1].xormask ^= hash
			H[hs.h1].count--
			if H[hs.h1].count == 1 {
				Q[Qsize].index = hs.h1
				Q[Qsize].hash = H[hs.h1].xormask
				Qsize++
			}
			H[hs.h2].xormask ^= hash
			H[hs.h2].count--
			if H[hs.h2].count == 1 {
				Q[Qsize].index = hs.h2
				Q[Qsize].hash = H[hs.h2].xormask
				Qsize++
			}
		}

		if stacksize == size {
			break
		}

		if iterations == 10 {
			if d, ok := iter.(deduper); ok {
				size = d.dedupe()
				stack = stack[:size]
			}
		}

		for i := range H {
			H[i] = xorset{0, 0}
		}
		filter.Seed = splitmix64(&rngcounter)
	}

	stacksize := size
	for stacksize > 0 {
		stacksize--
		ki := stack[stacksize]
		hs := filter.geth012(ki.hash)
		fp := uint8(fingerprint(ki.hash))
		switch ki.index {
		case hs.h0:
			fp ^= filter.Fingerprints[hs.h1] ^ filter.Fingerprints[hs.h2]
		case hs.h1:
			fp ^= filter.Fingerprints[hs.h0] ^ filter.Fingerprints[hs.h2]
		default:
			fp ^= filter.Fingerprints[hs.h0] ^ filter.Fingerprints[hs.h1]
		}
		filter.Fingerprints[ki.index] = fp
	}

	return filter, nil
}

// PopulateFuse8FromSlice is the slice-backed convenience wrapper.
func PopulateFuse8FromSlice(keys []uint64) (*Fuse8, error) {
	return PopulateFuse8(NewSliceIterator(keys))
}
