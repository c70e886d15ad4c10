package xorfilter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashSpotChecks(t *testing.T) {
	require.Equal(t, uint64(11156705658460211942), murmur64(20))
	require.Equal(t, uint64(9276143743022464963), murmur64(378))
	require.Equal(t, uint64(193654783976931328), rotl64(43, 52))
	require.Equal(t, uint32(8752776), reduce(1936547838, 19412321))

	s := uint64(13337)
	require.Equal(t, uint64(8862613829200693549), splitmix64(&s))
	require.Equal(t, uint64(1009918040199880802), splitmix64(&s))
	require.Equal(t, uint64(8603670078971061766), splitmix64(&s))
}

func TestMixsplitIsMurmurOfWrappingSum(t *testing.T) {
	key, seed := uint64(20), uint64(378)
	require.Equal(t, murmur64(key+seed), mixsplit(key, seed))
}
