package xorfilter

import "errors"

// ErrAllocationFailure is returned when a caller-chosen allocator cannot
// satisfy a filter's storage request. The default, Go-heap-backed
// allocators never return it; it exists for callers that plug in their
// own (e.g. mmap-backed) allocator for the long-lived fingerprint buffer.
var ErrAllocationFailure = errors.New("xorfilter: allocation failure")

// ErrKeysLikelyNotUnique is returned when a constructor's retry loop
// exhausts MaxIterations seed attempts. For a correctly sized, unique
// input set the probability of this is astronomically low; in practice it
// means the caller violated the uniqueness precondition (Xor/Fuse8) or
// supplied a pathologically adversarial key set (BinaryFuse, which
// tolerates duplicates up to a point but is not immune to crafted input).
var ErrKeysLikelyNotUnique = errors.New("xorfilter: keys likely not unique")
