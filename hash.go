package xorfilter

// Hash primitives shared by every filter constructor: the murmur64
// finalizer, the splitmix64 seed stream, 64-bit rotate, Lemire's
// fastrange reduction, and the fingerprint extraction function.
//
// All arithmetic here is intentionally wrapping 64-bit arithmetic; none
// of these functions can fail.

// murmur64 applies the MurmurHash3 64-bit finalizer (mix-shift-multiply).
func murmur64(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// splitmix64 advances *seed and returns the next value in the stream.
// Used exclusively to pick and retry filter construction seeds.
func splitmix64(seed *uint64) uint64 {
	*seed = *seed + 0x9E3779B97F4A7C15
	z := *seed
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// mixsplit combines a key with the current filter seed.
func mixsplit(key, seed uint64) uint64 {
	return murmur64(key + seed)
}

// rotl64 rotates n left by c bits, c taken mod 64.
func rotl64(n uint64, c int) uint64 {
	return (n << uint(c&63)) | (n >> uint((-c)&63))
}

// reduce is Lemire's fastrange: a biased but uniform-enough alternative
// to `hash % n` that avoids a division.
// http://lemire.me/blog/2016/06/27/a-fast-alternative-to-the-modulo-reduction/
func reduce(hash, n uint32) uint32 {
	return uint32((uint64(hash) * uint64(n)) >> 32)
}

// fingerprint folds a 64-bit hash down to the value whose low bits are
// stored per slot.
func fingerprint(hash uint64) uint64 {
	return hash ^ (hash >> 32)
}
