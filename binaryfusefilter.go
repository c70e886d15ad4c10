package xorfilter

import (
	"math"
	"math/bits"
	"unsafe"
)

// BinaryFuse is the revised fuse construction: the same ~0.879 fill
// factor as the classical Fuse8, but it works on arbitrarily small input
// sets and tolerates duplicate keys natively instead of requiring the
// caller to pre-deduplicate. T is the fingerprint storage type and Bits
// the requested width (2..8*sizeof(T)). BinaryFuse8/16/32/64 are plain
// aliases; the PopulateBinaryFuse8/16/32/64 helpers build them with Bits
// set to the full width of T.
type BinaryFuse[T Unsigned] struct {
	Seed               uint64
	SegmentLength      uint32
	SegmentLengthMask  uint32
	SegmentCount       uint32
	SegmentCountLength uint32
	Bits               uint

	Fingerprints []T
}

// Convenience aliases for the common fixed widths.
type (
	BinaryFuse8  = BinaryFuse[uint8]
	BinaryFuse16 = BinaryFuse[uint16]
	BinaryFuse32 = BinaryFuse[uint32]
	BinaryFuse64 = BinaryFuse[uint64]
)

// NewBinaryFuse creates a binary fuse filter of the requested width from a
// restartable key iterator. For best results, the caller should avoid
// having too many duplicated keys, though BinaryFuse handles a moderate
// amount of duplication during construction without help.
//
// The function may return an error if construction cannot converge within
// MaxIterations seed attempts.
func NewBinaryFuse[T Unsigned](iter KeyIterator, bits uint) (*BinaryFuse[T], error) {
	var b BinaryFuseBuilder
	filter, err := BuildBinaryFuse[T](&b, iter, bits)
	if err != nil {
		return nil, err
	}
	return &filter, nil
}

// NewBinaryFuseFromSlice is the slice-backed convenience wrapper over
// NewBinaryFuse.
func NewBinaryFuseFromSlice[T Unsigned](keys []uint64, bits uint) (*BinaryFuse[T], error) {
	return NewBinaryFuse[T](NewSliceIterator(keys), bits)
}

// BinaryFuseBuilder can be used to reuse memory allocations across multiple
// BinaryFuse builds.
type BinaryFuseBuilder struct {
	alone        reusableBuffer
	t2hash       reusableBuffer
	reverseOrder reusableBuffer
	t2count      reusableBuffer
	reverseH     reusableBuffer
	startPos     reusableBuffer
	fingerprints reusableBuffer
}

// BuildBinaryFuse creates a binary fuse filter with provided keys, reusing
// buffers from the BinaryFuseBuilder if possible. For best results, the
// caller should avoid having too many duplicated keys.
func BuildBinaryFuse[T Unsigned](b *BinaryFuseBuilder, iter KeyIterator, bits uint) (BinaryFuse[T], error) {
	f, _, err := buildBinaryFuse[T](b, iter, bits)
	return f, err
}

func buildBinaryFuse[T Unsigned](b *BinaryFuseBuilder, iter KeyIterator, bits uint) (_ BinaryFuse[T], iterations int, _ error) {
	size := uint32(iter.Len())
	var filter BinaryFuse[T]
	filter.Bits = bits
	filter.initializeParameters(b, size)
	rngcounter := uint64(0x726b2b9d438b9d4d)
	filter.Seed = splitmix64(&rngcounter)
	capacity := uint32(len(filter.Fingerprints))
	mask := bitMask[T](bits)

	alone := reuseBuffer[uint32](&b.alone, int(capacity))
	// the lowest 2 bits are the h index (0, 1, or 2)
	// so we only have 6 bits for counting;
	// but that's sufficient
	t2count := reuseBuffer[uint8](&b.t2count, int(capacity))
	reverseH := reuseBuffer[uint8](&b.reverseH, int(size))

	t2hash := reuseBuffer[uint64](&b.t2hash, int(capacity))
	reverseOrder := reuseBuffer[uint64](&b.reverseOrder, int(size+1))
	reverseOrder[size] = 1

	// the array h0, h1, h2, h0, h1, h2
	var h012 [6]uint32
	// this could be used to compute the mod3
	// tabmod3 := [5]uint8{0,1,2,0,1}
	for {
		iterations += 1
		if iterations > MaxIterations {
			// The probability of this happening is lower than the cosmic-ray
			// probability (i.e., a cosmic ray corrupts your system).
			return BinaryFuse[T]{}, iterations, ErrKeysLikelyNotUnique
		}
		if size > 4 && size < 1_000_000 {
			// The segment length is calculated using an empirical formula. For some
			// sizes, the segment length is too large and leads to many iterations.
			// Once every four iterations, use the previous segment length while
			// keeping the same capacity.
			switch iterations % 4 {
			case 2:
				// Switch to smaller segment size.
				filter.SegmentLength /= 2
				filter.SegmentLengthMask = filter.SegmentLength - 1
				filter.SegmentCount = filter.SegmentCount*2 + 2
				filter.SegmentCountLength = filter.SegmentCount * filter.SegmentLength
			case 3:
				// Restore the calculated segment size.
				filter.SegmentLength *= 2
				filter.SegmentLengthMask = filter.SegmentLength - 1
				filter.SegmentCount = filter.SegmentCount/2 - 1
				filter.SegmentCountLength = filter.SegmentCount * filter.SegmentLength
			}
		}

		blockBits := 1
		for (1 << blockBits) < filter.SegmentCount {
			blockBits += 1
		}
		startPos := reuseBuffer[uint](&b.startPos, 1<<blockBits)
		for i := range startPos {
			// important: we do not want i * size to overflow!!!
			startPos[i] = uint((uint64(i) * uint64(size)) >> blockBits)
		}
		for {
			key, ok := iter.Next()
			if !ok {
				break
			}
			hash := mixsplit(key, filter.Seed)
			segmentIndex := hash >> (64 - blockBits)
			for reverseOrder[startPos[segmentIndex]] != 0 {
				segmentIndex++
				segmentIndex &= (1 << blockBits) - 1
			}
			reverseOrder[startPos[segmentIndex]] = hash
			startPos[segmentIndex] += 1
		}
		errorFound := false
		duplicates := uint32(0)

		for i := uint32(0); i < size; i++ {
			hash := reverseOrder[i]
			index1, index2, index3 := filter.getHashFromHash(hash)
			t2count[index1] += 4
			t2hash[index1] ^= hash
			t2count[index2] += 4
			t2count[index2] ^= 1
			t2hash[index2] ^= hash
			t2count[index3] += 4
			t2count[index3] ^= 2
			t2hash[index3] ^= hash
			// If we have duplicated hash values, then it is likely that
			// the next comparison is true
			if t2hash[index1]&t2hash[index2]&t2hash[index3] == 0 {
				// next we do the actual test
				if ((t2hash[index1] == 0) && (t2count[index1] == 8)) || ((t2hash[index2] == 0) && (t2count[index2] == 8)) || ((t2hash[index3] == 0) && (t2count[index3] == 8)) {
					duplicates += 1
					t2count[index1] -= 4
					t2hash[index1] ^= hash
					t2count[index2] -= 4
					t2count[index2] ^= 1
					t2hash[index2] ^= hash
					t2count[index3] -= 4
					t2count[index3] ^= 2
					t2hash[index3] ^= hash
				}
			}
			if t2count[index1] < 4 {
				errorFound = true
			}
			if t2count[index2] < 4 {
				errorFound = true
			}
			if t2count[index3] < 4 {
				errorFound = true
			}
		}
		if errorFound {
			for i := uint32(0); i < size; i++ {
				reverseOrder[i] = 0
			}
			for i := uint32(0); i < capacity; i++ {
				t2count[i] = 0
				t2hash[i] = 0
			}
			filter.Seed = splitmix64(&rngcounter)
			continue
		}

		// End of key addition

		Qsize := 0
		// Add sets with one key to the queue.
		for i := uint32(0); i < capacity; i++ {
			alone[Qsize] = i
			if (t2count[i] >> 2) == 1 {
				Qsize++
			}
		}
		stacksize := uint32(0)
		for Qsize > 0 {
			Qsize--
			index := alone[Qsize]
			if (t2count[index] >> 2) == 1 {
				hash := t2hash[index]
				found := t2count[index] & 3
				reverseH[stacksize] = found
				reverseOrder[stacksize] = hash
				stacksize++

				index1, index2, index3 := filter.getHashFromHash(hash)

				h012[1] = index2
				h012[2] = index3
				h012[3] = index1
				h012[4] = h012[1]

				otherIndex1 := h012[found+1]
				alone[Qsize] = otherIndex1
				if (t2count[otherIndex1] >> 2) == 2 {
					Qsize++
				}
				t2count[otherIndex1] -= 4
				t2count[otherIndex1] ^= filter.mod3(found + 1)
				t2hash[otherIndex1] ^= hash

				otherIndex2 := h012[found+2]
				alone[Qsize] = otherIndex2
				if (t2count[otherIndex2] >> 2) == 2 {
					Qsize++
				}
				t2count[otherIndex2] -= 4
				t2count[otherIndex2] ^= filter.mod3(found + 2)
				t2hash[otherIndex2] ^= hash
			}
		}

		if stacksize+duplicates == size {
			// Success
			size = stacksize
			break
		} else if duplicates > 0 {
			// Duplicates were found, but we did not manage to remove them
			// all. Fall back to deduplicating the key source outright, the
			// way Xor/Fuse8 rescue a stalled peel at iteration 10.
			if d, ok := iter.(deduper); ok {
				size = uint32(d.dedupe())
			}
		}
		for i := uint32(0); i < size; i++ {
			reverseOrder[i] = 0
		}
		for i := uint32(0); i < capacity; i++ {
			t2count[i] = 0
			t2hash[i] = 0
		}
		filter.Seed = splitmix64(&rngcounter)
	}
	if size == 0 {
		return filter, iterations, nil
	}

	for i := int(size - 1); i >= 0; i-- {
		// the hash of the key we insert next
		hash := reverseOrder[i]
		xor2 := T(fingerprint(hash)) & mask
		index1, index2, index3 := filter.getHashFromHash(hash)
		found := reverseH[i]
		h012[0] = index1
		h012[1] = index2
		h012[2] = index3
		h012[3] = h012[0]
		h012[4] = h012[1]
		filter.Fingerprints[h012[found]] = xor2 ^ filter.Fingerprints[h012[found+1]] ^ filter.Fingerprints[h012[found+2]]
	}

	return filter, iterations, nil
}

func (filter *BinaryFuse[T]) initializeParameters(b *BinaryFuseBuilder, size uint32) {
	arity := uint32(3)
	filter.SegmentLength = calculateSegmentLength(arity, size)
	if filter.SegmentLength > 262144 {
		filter.SegmentLength = 262144
	}
	filter.SegmentLengthMask = filter.SegmentLength - 1
	sizeFactor := calculateSizeFactor(arity, size)
	capacity := uint32(0)
	if size > 1 {
		capacity = uint32(math.Round(float64(size) * sizeFactor))
	}
	initSegmentCount := (capacity+filter.SegmentLength-1)/filter.SegmentLength - (arity - 1)
	arrayLength := (initSegmentCount + arity - 1) * filter.SegmentLength
	filter.SegmentCount = (arrayLength + filter.SegmentLength - 1) / filter.SegmentLength
	if filter.SegmentCount <= arity-1 {
		filter.SegmentCount = 1
	} else {
		filter.SegmentCount = filter.SegmentCount - (arity - 1)
	}
	arrayLength = (filter.SegmentCount + arity - 1) * filter.SegmentLength
	filter.SegmentCountLength = filter.SegmentCount * filter.SegmentLength
	filter.Fingerprints = reuseBuffer[T](&b.fingerprints, int(arrayLength))
}

func (filter *BinaryFuse[T]) mod3(x uint8) uint8 {
	if x > 2 {
		x -= 3
	}

	return x
}

func (filter *BinaryFuse[T]) getHashFromHash(hash uint64) (uint32, uint32, uint32) {
	hi, _ := bits.Mul64(hash, uint64(filter.SegmentCountLength))
	h0 := uint32(hi)
	h1 := h0 + filter.SegmentLength
	h2 := h1 + filter.SegmentLength
	h1 ^= uint32(hash>>18) & filter.SegmentLengthMask
	h2 ^= uint32(hash) & filter.SegmentLengthMask
	return h0, h1, h2
}

// Contains returns true if key is part of the set with a false positive
// probability of approximately 2^-Bits.
func (filter *BinaryFuse[T]) Contains(key uint64) bool {
	hash := mixsplit(key, filter.Seed)
	mask := bitMask[T](filter.Bits)
	f := T(fingerprint(hash)) & mask
	h0, h1, h2 := filter.getHashFromHash(hash)
	f ^= filter.Fingerprints[h0] ^ filter.Fingerprints[h1] ^ filter.Fingerprints[h2]
	return f == 0
}

// SizeInBytes reports fingerprint storage (rounded up to whole bytes per
// the requested bit width) plus the fixed struct overhead.
func (filter *BinaryFuse[T]) SizeInBytes() int {
	return len(filter.Fingerprints)*byteWidth(filter.Bits) + int(unsafe.Sizeof(*filter))
}

// Close releases the filter's fingerprint storage, matching Xor[T].Close.
func (filter *BinaryFuse[T]) Close() {
	filter.Fingerprints = nil
}

func calculateSegmentLength(arity uint32, size uint32) uint32 {
	// These parameters are very sensitive. Replacing 'floor' by 'round' can
	// substantially affect the construction time.
	if size == 0 {
		return 4
	}
	if arity == 3 {
		return uint32(1) << int(math.Floor(math.Log(float64(size))/math.Log(3.33)+2.25))
	} else if arity == 4 {
		return uint32(1) << int(math.Floor(math.Log(float64(size))/math.Log(2.91)-0.5))
	} else {
		return 65536
	}
}

func calculateSizeFactor(arity uint32, size uint32) float64 {
	if arity == 3 {
		return math.Max(1.125, 0.875+0.25*math.Log(1000000)/math.Log(float64(size)))
	} else if arity == 4 {
		return math.Max(1.075, 0.77+0.305*math.Log(600000)/math.Log(float64(size)))
	} else {
		return 2.0
	}
}

// reusableBuffer allows reuse of a backing buffer to avoid allocations for
// slices of integers.
type reusableBuffer struct {
	buf []uint64
}

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// reuseBuffer returns an empty slice of the given size, reusing the last buffer
// if possible.
func reuseBuffer[T integer](b *reusableBuffer, size int) []T {
	const sizeOfUint64 = 8
	// Our backing buffer is a []uint64. Figure out how many uint64s we need
	// to back a []T of the requested size.
	bufSize := int((uintptr(size)*unsafe.Sizeof(T(0)) + sizeOfUint64 - 1) / sizeOfUint64)
	if cap(b.buf) >= bufSize {
		clear(b.buf[:bufSize])
	} else {
		// We need to allocate a new buffer. Increase by at least 25% to amortize
		// allocations; this is what append() does for large enough slices.
		b.buf = make([]uint64, max(bufSize, cap(b.buf)+cap(b.buf)/4))
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b.buf))), size)
}
