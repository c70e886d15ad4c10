package xorfilter

import (
	"fmt"
	"math/rand"
	"testing"
	"time"
	"unsafe"

	"github.com/cespare/xxhash"
	"github.com/stretchr/testify/require"
)

const SMALL_NUM_KEYS = 10000

var rng = uint64(time.Now().UnixNano())

func TestBasic(t *testing.T) {
	keys := make([]uint64, NUM_KEYS)
	for i := range keys {
		keys[i] = splitmix64(&rng)
	}
	filter, _ := Populate(keys)
	for _, v := range keys {
		require.True(t, filter.Contains(v))
	}
	falsesize := 10000000
	matches := 0
	bpv := float64(len(filter.Fingerprints)) * 8.0 / float64(NUM_KEYS)
	fmt.Println("Xor8 filter:")
	fmt.Println("bits per entry ", bpv)
	for i := 0; i < falsesize; i++ {
		v := splitmix64(&rng)
		if filter.Contains(v) {
			matches++
		}
	}
	fpp := float64(matches) * 100.0 / float64(falsesize)
	fmt.Println("false positive rate ", fpp)
	require.Less(t, fpp, 0.40)
	cut := 1000
	keys = keys[:cut]
	for trial := 0; trial < 10; trial++ {
		for i := range keys {
			keys[i] = splitmix64(&rng)
		}
		filter, _ = Populate(keys)
		for _, v := range keys {
			require.True(t, filter.Contains(v))
		}
	}
}

func TestSmall(t *testing.T) {
	keys := make([]uint64, SMALL_NUM_KEYS)
	for i := range keys {
		keys[i] = splitmix64(&rng)
	}
	filter, _ := Populate(keys)
	for _, v := range keys {
		require.True(t, filter.Contains(v))
	}
	falsesize := 10000000
	matches := 0
	for i := 0; i < falsesize; i++ {
		v := splitmix64(&rng)
		if filter.Contains(v) {
			matches++
		}
	}
	fpp := float64(matches) * 100.0 / float64(falsesize)
	require.Less(t, fpp, 0.40)
	cut := 1000
	keys = keys[:cut]
	for trial := 0; trial < 10; trial++ {
		for i := range keys {
			keys[i] = splitmix64(&rng)
		}
		filter, _ = Populate(keys)
		for _, v := range keys {
			require.True(t, filter.Contains(v))
		}
	}
}

// TestXor8SizeAtTenThousand pins the reported size of a filter populated
// from 10000 sequential keys: BlockLength=4110 (32+ceil(1.23*10000)=12332,
// rounded down to a multiple of 3 is 12330, /3=4110), giving a
// Fingerprints length of 3*4110=12330.
func TestXor8SizeAtTenThousand(t *testing.T) {
	keys := make([]uint64, 10000)
	for i := range keys {
		keys[i] = uint64(i)
	}
	filter, err := Populate(keys)
	require.NoError(t, err)
	require.Equal(t, 12370, filter.SizeInBytes())
	for _, v := range keys {
		require.True(t, filter.Contains(v))
	}
}

func TestXor16SizeAtTenThousand(t *testing.T) {
	keys := make([]uint64, 10000)
	for i := range keys {
		keys[i] = uint64(i)
	}
	filter, err := PopulateXor16(keys)
	require.NoError(t, err)
	require.Equal(t, 24700, filter.SizeInBytes())
}

func TestPopulateXorWithBuilderRepeatedBuilds(t *testing.T) {
	var b XorBuilder[uint8]
	keys := make([]uint64, 5000)
	for i := range keys {
		keys[i] = uint64(i)
	}
	for round := 0; round < 3; round++ {
		filter, err := PopulateXorWithBuilder[uint8](&b, NewSliceIterator(keys), 8)
		require.NoError(t, err)
		for _, v := range keys {
			require.True(t, filter.Contains(v))
		}
	}
}

// countingFingerprintAllocator wraps the heap allocator but records every
// allocation it serves, so a test can prove a builder actually routed
// construction through it instead of silently falling back to the
// package's default heap allocator.
type countingFingerprintAllocator[T Unsigned] struct {
	calls int
	sizes []int
}

func (a *countingFingerprintAllocator[T]) Alloc(n int) ([]T, error) {
	a.calls++
	a.sizes = append(a.sizes, n)
	return make([]T, n), nil
}

func TestPopulateXorWithBuilderUsesFingerprintAllocator(t *testing.T) {
	alloc := &countingFingerprintAllocator[uint8]{}
	b := XorBuilder[uint8]{Fingerprints: alloc}

	keys := make([]uint64, 5000)
	for i := range keys {
		keys[i] = uint64(i)
	}

	filter, err := PopulateXorWithBuilder[uint8](&b, NewSliceIterator(keys), 8)
	require.NoError(t, err)
	require.Equal(t, 1, alloc.calls, "construction must route fingerprint storage through the builder's allocator")
	require.Equal(t, len(filter.Fingerprints), alloc.sizes[0])
	for _, v := range keys {
		require.True(t, filter.Contains(v))
	}
}

func TestEmptyKeySet(t *testing.T) {
	filter, err := Populate(nil)
	require.NoError(t, err)
	require.False(t, filter.Contains(12345))
}

func BenchmarkPopulate100000(b *testing.B) {
	testsize := 100000
	keys := make([]uint64, testsize)

	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		b.StopTimer()
		for i := range keys {
			keys[i] = splitmix64(&rng)
		}
		b.StartTimer()
		Populate(keys)
	}
}

func encode(v1, v2 int32) []byte {
	v := make([]byte, 8)
	v = append(v, unsafe.Slice((*byte)(unsafe.Pointer(&v1)), 4)...)
	v = append(v, unsafe.Slice((*byte)(unsafe.Pointer(&v2)), 4)...)
	return v
}

// credit: el10savio
func Test_DuplicateKeys(t *testing.T) {
	keys := []uint64{1, 77, 31, 241, 303, 303}
	_, err := Populate(keys)
	require.NoError(t, err)
}

func BenchmarkContains100000(b *testing.B) {
	testsize := 100000
	keys := make([]uint64, testsize)
	for i := range keys {
		keys[i] = splitmix64(&rng)
	}
	filter, _ := Populate(keys)

	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		filter.Contains(keys[n%len(keys)])
	}
}

const CONSTRUCT_SIZE = 10000000

var bigrandomarray []uint64

func bigrandomarrayInit() {
	if bigrandomarray == nil {
		fmt.Println("bigrandomarray setup with CONSTRUCT_SIZE = ", CONSTRUCT_SIZE)
		bigrandomarray = make([]uint64, CONSTRUCT_SIZE)
		for i := range bigrandomarray {
			bigrandomarray[i] = rand.Uint64()
		}
	}
}

func BenchmarkConstructXor8(b *testing.B) {
	bigrandomarrayInit()
	b.ResetTimer()
	b.ReportAllocs()
	for n := 0; n < b.N; n++ {
		Populate(bigrandomarray)
	}
}

var xor8big *Xor8

func xor8bigInit() {
	fmt.Println("Xor8 setup")
	keys := make([]uint64, 50000000)
	for i := range keys {
		keys[i] = rand.Uint64()
	}
	xor8big, _ = Populate(keys)
	fmt.Println("Xor8 setup ok")
}

func BenchmarkXor8bigContains50000000(b *testing.B) {
	if xor8big == nil {
		xor8bigInit()
	}
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		xor8big.Contains(rand.Uint64())
	}
}

func TestFSDIssue35_basic(t *testing.T) {
	hashes := make([]uint64, 0)
	for i := 0; i < 2000; i++ {
		v := encode(rand.Int31n(10), rand.Int31n(100000))
		hashes = append(hashes, xxhash.Sum64(v))
	}
	inner, err := Populate(hashes)
	require.NoError(t, err)
	for _, d := range hashes {
		require.True(t, inner.Contains(d))
	}
}

func Test_Issue35_basic(t *testing.T) {
	for test := 0; test < 100; test++ {
		hashes := make([]uint64, 0)
		for i := 0; i < 40000; i++ {
			v := encode(rand.Int31n(10), rand.Int31n(100000))
			hashes = append(hashes, xxhash.Sum64(v))
		}
		inner, err := PopulateBinaryFuse8FromSlice(hashes)
		require.NoError(t, err)
		for _, d := range hashes {
			require.True(t, inner.Contains(d))
		}
	}
}
