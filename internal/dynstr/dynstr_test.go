package dynstr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendInPlaceWhenCapacitySuffices(t *testing.T) {
	d := WithCapacity(16).Append([]byte("ab"))
	before := d.Bytes()
	grew := d.Append([]byte("cd"))

	require.Equal(t, "abcd", grew.String())
	require.Equal(t, 4, grew.Len())
	require.Equal(t, "ab", string(before), "prior view must not observe the append")
}

func TestAppendReallocatesPastCapacity(t *testing.T) {
	d := New([]byte("x"))
	grew := d.Append([]byte("yz"))

	require.Equal(t, "xyz", grew.String())
	require.Equal(t, "x", d.String(), "receiver must be unaffected by growth")
}

func TestHeaderBandUpgrades(t *testing.T) {
	require.Equal(t, BandSmall, WithCapacity(255).Band())
	require.Equal(t, BandMedium, WithCapacity(256).Band())
	require.Equal(t, BandMedium, WithCapacity(65535).Band())
	require.Equal(t, BandLarge, WithCapacity(65536).Band())
}

func TestAppendAfterTypeUpgrade(t *testing.T) {
	d := New(nil)
	for i := 0; i < 260; i++ {
		d = d.Append([]byte("A"))
	}
	require.Equal(t, 260, d.Len())
	require.Equal(t, "AAAA", string(d.Range(0, 3)))
	require.Equal(t, BandMedium, d.Band())
}

func TestBinarySafety(t *testing.T) {
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i)
	}
	d := New(payload)
	require.Equal(t, 256, d.Len())
	require.Equal(t, payload, d.Bytes())
}

func TestRangeNegativeIndices(t *testing.T) {
	d := New([]byte("Hello World"))
	require.Equal(t, "World", string(d.Range(-5, -1)))
	require.Equal(t, "Hello", string(d.Range(0, 4)))
	require.Nil(t, d.Range(6, 2), "start > end yields empty range")
}

func TestCompareAndEqual(t *testing.T) {
	a := New([]byte("abc"))
	b := New([]byte("abd"))
	require.True(t, a.Compare(b) < 0)
	require.False(t, a.Equal(b))
	require.True(t, a.Equal(New([]byte("abc"))))
}

func TestGrowthDoublesThenCapsAtOneMiB(t *testing.T) {
	require.Equal(t, 2, growCapacity(1, 2))
	require.Equal(t, growthCap, growCapacity(growthCap/2, growthCap))
	require.Equal(t, growthCap*2, growCapacity(growthCap, growthCap+1))
}
