package xorfilter

import "io"

// PopulateBinaryFuse8 builds an 8-bit binary fuse filter from a
// restartable key iterator. For best results the caller should avoid
// having too many duplicated keys.
func PopulateBinaryFuse8(iter KeyIterator) (*BinaryFuse8, error) {
	return NewBinaryFuse[uint8](iter, 8)
}

// PopulateBinaryFuse8FromSlice is the slice-backed convenience wrapper.
func PopulateBinaryFuse8FromSlice(keys []uint64) (*BinaryFuse8, error) {
	return PopulateBinaryFuse8(NewSliceIterator(keys))
}

// PopulateBinaryFuse16 builds a 16-bit binary fuse filter.
func PopulateBinaryFuse16(iter KeyIterator) (*BinaryFuse16, error) {
	return NewBinaryFuse[uint16](iter, 16)
}

// PopulateBinaryFuse32 builds a 32-bit binary fuse filter.
func PopulateBinaryFuse32(iter KeyIterator) (*BinaryFuse32, error) {
	return NewBinaryFuse[uint32](iter, 32)
}

// PopulateBinaryFuse64 builds a 64-bit binary fuse filter.
func PopulateBinaryFuse64(iter KeyIterator) (*BinaryFuse64, error) {
	return NewBinaryFuse[uint64](iter, 64)
}

// LoadBinaryFuse8 reads the filter from the reader in little endian format.
func LoadBinaryFuse8(r io.Reader) (*BinaryFuse8, error) {
	return LoadBinaryFuse[uint8](r)
}
