package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitsShareOctets(t *testing.T) {
	w := NewArgWriter()
	w.Bit(true)
	w.Bit(false)
	w.Bit(true)
	w.Short(7)
	w.Bit(true)

	assert.Equal(t, []byte{0x05, 0x00, 0x07, 0x01}, w.Bytes())
}

func TestNineBitsSpillIntoSecondOctet(t *testing.T) {
	w := NewArgWriter()
	for i := 0; i < 9; i++ {
		w.Bit(true)
	}
	require.Equal(t, []byte{0xff, 0x01}, w.Bytes())

	r := NewArgReader(w.Bytes())
	for i := 0; i < 9; i++ {
		assert.True(t, r.Bit(), "bit %d", i)
	}
	require.NoError(t, r.Err())
}

func TestArgReaderMixedFields(t *testing.T) {
	w := NewArgWriter()
	w.Octet(1)
	w.Short(2)
	w.Long(3)
	w.LongLong(4)
	w.ShortStr("short")
	w.LongStr("long")
	w.Bit(false)
	w.Bit(true)
	w.Table(Table{"k": "v"})
	require.NoError(t, w.Err())

	r := NewArgReader(w.Bytes())
	assert.Equal(t, uint8(1), r.Octet())
	assert.Equal(t, uint16(2), r.Short())
	assert.Equal(t, uint32(3), r.Long())
	assert.Equal(t, uint64(4), r.LongLong())
	assert.Equal(t, "short", r.ShortStr())
	assert.Equal(t, "long", r.LongStr())
	assert.False(t, r.Bit())
	assert.True(t, r.Bit())
	assert.Equal(t, Table{"k": "v"}, r.Table())
	assert.NoError(t, r.Err())
}

func TestArgReaderErrorIsSticky(t *testing.T) {
	r := NewArgReader([]byte{0x01})

	assert.Equal(t, uint16(0), r.Short())
	assert.Equal(t, uint8(0), r.Octet())
	assert.Equal(t, "", r.ShortStr())

	err := r.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMismatch))
}
