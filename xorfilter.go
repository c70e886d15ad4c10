package xorfilter

import (
	"math"
	"unsafe"
)

// Xor is a three-hash fingerprint filter parameterised over a fingerprint
// storage type T and a bit width Bits (2..8*sizeof(T)). Xor8/Xor16/Xor32/
// Xor64 are plain aliases; the Populate/PopulateXor16/PopulateXor32
// helpers build them with Bits set to the full width of T, matching the
// teacher's original Xor8. A caller wanting, say, a 12-bit fingerprint can instantiate
// Xor[uint16] with Bits=12 instead, the way brianolson/xorfilter's XorN
// layers a sub-word bit mask over a fixed storage type.
//
// A constructed Xor filter never produces a false negative: every key
// used to populate it reports Contains == true.
type Xor[T Unsigned] struct {
	Seed         uint64
	BlockLength  uint32
	Bits         uint8
	Fingerprints []T
}

// Convenience aliases for the common fixed widths.
type (
	Xor8  = Xor[uint8]
	Xor16 = Xor[uint16]
	Xor32 = Xor[uint32]
	Xor64 = Xor[uint64]
)

// XorBuilder reuses its scratch allocations across multiple
// PopulateXorWithBuilder calls, and optionally directs the filter's
// long-lived fingerprint storage to a caller-supplied allocator (e.g.
// mmap-backed) instead of the Go heap.
type XorBuilder[T Unsigned] struct {
	Scratch      ScratchAllocator[keyindex]
	Sets         ScratchAllocator[xorset]
	Fingerprints FingerprintAllocator[T]
}

// NewXor allocates (but does not populate) a Xor filter sized from the
// expected key count and fingerprint width.
func NewXor[T Unsigned](capacityHint int, bits uint, alloc FingerprintAllocator[T]) (*Xor[T], error) {
	if alloc == nil {
		alloc = heapFingerprintAllocator[T]{}
	}
	blockLength := xorBlockLength(capacityHint)
	fp, err := alloc.Alloc(int(3 * blockLength))
	if err != nil {
		return nil, ErrAllocationFailure
	}
	return &Xor[T]{BlockLength: blockLength, Bits: uint8(bits), Fingerprints: fp}, nil
}

func xorBlockLength(size int) uint32 {
	capacity := 32 + uint32(math.Ceil(1.23*float64(size)))
	capacity = capacity / 3 * 3 // round down to a multiple of 3
	return capacity / 3
}

// Close releases the filter's fingerprint storage. Since Go is garbage
// collected this is a convenience rather than a hard free; it exists so
// that callers who plugged in an mmap-backed FingerprintAllocator have an
// explicit point to unmap from.
func (filter *Xor[T]) Close() {
	filter.Fingerprints = nil
}

// SizeInBytes reports fingerprint storage (rounded up to whole bytes per
// the requested bit width) plus the fixed struct overhead.
func (filter *Xor[T]) SizeInBytes() int {
	return len(filter.Fingerprints)*byteWidth(uint(filter.Bits)) + int(unsafe.Sizeof(*filter))
}

// Contains tells you whether the key is likely part of the set.
func (filter *Xor[T]) Contains(key uint64) bool {
	hash := mixsplit(key, filter.Seed)
	mask := bitMask[T](uint(filter.Bits))
	f := T(fingerprint(hash)) & mask
	r0 := uint32(hash)
	r1 := uint32(rotl64(hash, 21))
	r2 := uint32(rotl64(hash, 42))
	h0 := reduce(r0, filter.BlockLength)
	h1 := reduce(r1, filter.BlockLength) + filter.BlockLength
	h2 := reduce(r2, filter.BlockLength) + 2*filter.BlockLength
	return f == (filter.Fingerprints[h0] ^ filter.Fingerprints[h1] ^ filter.Fingerprints[h2])
}

func (filter *Xor[T]) geth0h1h2(k uint64) hashes {
	hash := mixsplit(k, filter.Seed)
	answer := hashes{}
	answer.h = hash
	r0 := uint32(hash)
	r1 := uint32(rotl64(hash, 21))
	r2 := uint32(rotl64(hash, 42))

	answer.h0 = reduce(r0, filter.BlockLength)
	answer.h1 = reduce(r1, filter.BlockLength)
	answer.h2 = reduce(r2, filter.BlockLength)
	return answer
}

func (filter *Xor[T]) geth0(hash uint64) uint32 {
	r0 := uint32(hash)
	return reduce(r0, filter.BlockLength)
}

func (filter *Xor[T]) geth1(hash uint64) uint32 {
	r1 := uint32(rotl64(hash, 21))
	return reduce(r1, filter.BlockLength)
}

func (filter *Xor[T]) geth2(hash uint64) uint32 {
	r2 := uint32(rotl64(hash, 42))
	return reduce(r2, filter.BlockLength)
}

// scanCount scans a bucket-array range for entries with a count of one,
// filling Qi, and returns the number of entries found.
func scanCount(Qi []keyindex, setsi []xorset) ([]keyindex, int) {
	QiSize := 0
	for i := uint32(0); i < uint32(len(setsi)); i++ {
		if setsi[i].count == 1 {
			Qi[QiSize].index = i
			Qi[QiSize].hash = setsi[i].xormask
			QiSize++
		}
	}
	return Qi, QiSize
}

func resetSets(setsi []xorset) []xorset {
	for i := range setsi {
		setsi[i] = xorset{0, 0}
	}
	return setsi
}

// PopulateXor builds a Xor[T] filter of the given bit width from a
// restartable key iterator, using heap-allocated scratch buffers. The
// caller should avoid having too many duplicated keys (see
// Unique/AutoUnique); Populate does not deduplicate for the caller beyond
// the rescue pass after iteration 10.
func PopulateXor[T Unsigned](iter KeyIterator, bits uint) (*Xor[T], error) {
	return PopulateXorWithBuilder[T](&XorBuilder[T]{}, iter, bits)
}

// PopulateXorWithBuilder is PopulateXor with caller-supplied scratch
// allocators. A caller wanting the teacher's BinaryFuseBuilder-style
// buffer reuse across builds supplies a ScratchAllocator that caches and
// resizes its backing storage instead of the default heap allocator,
// which allocates fresh on every call.
func PopulateXorWithBuilder[T Unsigned](b *XorBuilder[T], iter KeyIterator, bits uint) (*Xor[T], error) {
	scratch := b.Scratch
	if scratch == nil {
		scratch = heapScratchAllocator[keyindex]{}
	}
	sets := b.Sets
	if sets == nil {
		sets = heapScratchAllocator[xorset]{}
	}

	size := iter.Len()
	filter, err := NewXor[T](size, bits, b.Fingerprints)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return filter, nil
	}

	var rngcounter uint64 = 1
	filter.Seed = splitmix64(&rngcounter)

	stack, err := scratch.Alloc(size)
	if err != nil {
		return nil, ErrAllocationFailure
	}
	Q0, err := scratch.Alloc(int(filter.BlockLength))
	if err != nil {
		return nil, ErrAllocationFailure
	}
	Q1, err := scratch.Alloc(int(filter.BlockLength))
	if err != nil {
		return nil, ErrAllocationFailure
	}
	Q2, err := scratch.Alloc(int(filter.BlockLength))
	if err != nil {
		return nil, ErrAllocationFailure
	}
	sets0, err := sets.Alloc(int(filter.BlockLength))
	if err != nil {
		return nil, ErrAllocationFailure
	}
	sets1, err := sets.Alloc(int(filter.BlockLength))
	if err != nil {
		return nil, ErrAllocationFailure
	}
	sets2, err := sets.Alloc(int(filter.BlockLength))
	if err != nil {
		return nil, ErrAllocationFailure
	}
	iterations := 0

	mask := bitMask[T](bits)

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
			hs := filter.geth0h1h2(key)
			sets0[hs.h0].xormask ^= hs.h
			sets0[hs.h0].count++
			sets1[hs.h1].xormask ^= hs.h
			sets1[hs.h1].count++
			sets2[hs.h2].xormask ^= hs.h
			sets2[hs.h2].count++
		}

		Q0, Q0size := scanCount(Q0, sets0)
		Q1, Q1size := scanCount(Q1, sets1)
		Q2, Q2size := scanCount(Q2, sets2)

		stacksize := 0
		for Q0size+Q1size+Q2size > 0 {
			for Q0size > 0 {
				Q0size--
				keyindexvar := Q0[Q0size]
				index := keyindexvar.index
				if sets0[index].count == 0 {
					continue
				}
				hash := keyindexvar.hash
				h1 := filter.geth1(hash)
				h2 := filter.geth2(hash)
				stack[stacksize] = keyindexvar
				stacksize++
				sets1[h1].xormask ^= hash
				sets1[h1].count--
				if sets1[h1].count == 1 {
					Q1[Q1size].index = h1
					Q1[Q1size].hash = sets1[h1].xormask
					Q1size++
				}
				sets2[h2].xormask ^= hash
				sets2[h2].count--
				if sets2[h2].count == 1 {
					Q2[Q2size].index = h2
					Q2[Q2size].hash = sets2[h2].xormask
					Q2size++
				}
			}
			for Q1size > 0 {
				Q1size--
				keyindexvar := Q1[Q1size]
				index := keyindexvar.index
				if sets1[index].count == 0 {
					continue
				}
				hash := keyindexvar.hash
				h0 := filter.geth0(hash)
				h2 := filter.geth2(hash)
				keyindexvar.index += filter.BlockLength
				stack[stacksize] = keyindexvar
				stacksize++
				sets0[h0].xormask ^= hash
				sets0[h0].count--
				if sets0[h0].count == 1 {
					Q0[Q0size].index = h0
					Q0[Q0size].hash = sets0[h0].xormask
					Q0size++
				}
				sets2[h2].xormask ^= hash
				sets2[h2].count--
				if sets2[h2].count == 1 {
					Q2[Q2size].index = h2
					Q2[Q2size].hash = sets2[h2].xormask
					Q2size++
				}
			}
			for Q2size > 0 {
				Q2size--
				keyindexvar := Q2[Q2size]
				index := keyindexvar.index
				if sets2[index].count == 0 {
					continue
				}
				hash := keyindexvar.hash
				h0 := filter.geth0(hash)
				h1 := filter.geth1(hash)
				keyindexvar.index += 2 * filter.BlockLength
				stack[stacksize] = keyindexvar
				stacksize++
				sets0[h0].xormask ^= hash
				sets0[h0].count--
				if sets0[h0].count == 1 {
					Q0[Q0size].index = h0
					Q0[Q0size].hash = sets0[h0].xormask
					Q0size++
				}
				sets1[h1].xormask ^= hash
				sets1[h1].count--
				if sets1[h1].count == 1 {
					Q1[Q1size].index = h1
					Q1[Q1size].hash = sets1[h1].xormask
					Q1size++
				}
			}
		}

		if stacksize == size {
			break
		}

		if iterations == 10 {
			if d, ok := iter.(deduper); ok {
				size = d.dedupe()
			}
		}

		sets0 = resetSets(sets0)
		sets1 = resetSets(sets1)
		sets2 = resetSets(sets2)

		filter.Seed = splitmix64(&rngcounter)
	}

	stacksize := size
	for stacksize > 0 {
		stacksize--
		ki := stack[stacksize]
		val := T(fingerprint(ki.hash)) & mask
		if ki.index < filter.BlockLength {
			val ^= filter.Fingerprints[filter.geth1(ki.hash)+filter.BlockLength] ^ filter.Fingerprints[filter.geth2(ki.hash)+2*filter.BlockLength]
		} else if ki.index < 2*filter.BlockLength {
			val ^= filter.Fingerprints[filter.geth0(ki.hash)] ^ filter.Fingerprints[filter.geth2(ki.hash)+2*filter.BlockLength]
		} else {
			val ^= filter.Fingerprints[filter.geth0(ki.hash)] ^ filter.Fingerprints[filter.geth1(ki.hash)+filter.BlockLength]
		}
		filter.Fingerprints[ki.index] = val
	}
	return filter, nil
}

// PopulateXorFromSlice is the slice-backed convenience wrapper over
// PopulateXor.
func PopulateXorFromSlice[T Unsigned](keys []uint64, bits uint) (*Xor[T], error) {
	return PopulateXor[T](NewSliceIterator(keys), bits)
}

// Populate builds an 8-bit Xor filter, matching the teacher's original
// top-level entry point.
func Populate(keys []uint64) (*Xor8, error) {
	return PopulateXorFromSlice[uint8](keys, 8)
}

// PopulateXor16 builds a 16-bit Xor filter.
func PopulateXor16(keys []uint64) (*Xor16, error) {
	return PopulateXorFromSlice[uint16](keys, 16)
}

// PopulateXor32 builds a 32-bit Xor filter.
func PopulateXor32(keys []uint64) (*Xor32, error) {
	return PopulateXorFromSlice[uint32](keys, 32)
}
