package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		table Table
	}{
		{
			name:  "empty table",
			table: Table{},
		},
		{
			name: "integers",
			table: Table{
				"i8":  int8(-8),
				"u8":  uint8(8),
				"i16": int16(-1600),
				"u16": uint16(1600),
				"i32": int32(42),
				"u32": uint32(4000000000),
				"i64": int64(9223372036854775807),
			},
		},
		{
			name: "scalars",
			table: Table{
				"bool":    true,
				"false":   false,
				"string":  "hello",
				"bytes":   []byte{0x00, 0xff, 0x10},
				"float32": float32(1.5),
				"float64": float64(3.14159),
				"decimal": Decimal{Scale: 2, Value: 12345},
			},
		},
		{
			name: "nested tables",
			table: Table{
				"outer": Table{
					"inner": "value",
					"num":   int32(123),
					"deeper": Table{
						"flag": true,
					},
				},
			},
		},
		{
			name: "arrays",
			table: Table{
				"array": []interface{}{int32(1), "two", true, Table{"k": "v"}},
				"empty": []interface{}{},
			},
		},
		{
			name:  "timestamp",
			table: Table{"timestamp": time.Unix(1234567890, 0)},
		},
		{
			name:  "void",
			table: Table{"null": nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteTable(&buf, tt.table))

			decoded, err := ReadTable(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, tt.table, decoded)
		})
	}
}

func TestTableEncodingIsDeterministic(t *testing.T) {
	table := Table{"b": int32(2), "a": int32(1), "c": "three", "d": Table{"z": true, "y": false}}

	var first bytes.Buffer
	require.NoError(t, WriteTable(&first, table))

	for i := 0; i < 20; i++ {
		var again bytes.Buffer
		require.NoError(t, WriteTable(&again, table))
		assert.Equal(t, first.Bytes(), again.Bytes())
	}
}

func TestIntIsEncodedAsLong(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, Table{"n": 7}))

	decoded, err := ReadTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(7), decoded["n"])
}

func TestUnsupportedFieldValue(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTable(&buf, Table{"ch": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported field value type")
}

func TestUnknownFieldTypeIsMismatch(t *testing.T) {
	// table{"k": '?'}
	payload := []byte{0, 0, 0, 3, 1, 'k', '?'}

	_, err := ReadTable(bytes.NewReader(payload))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMismatch))
}

func TestTruncatedTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, Table{"key": "value"}))

	data := buf.Bytes()
	_, err := ReadTable(bytes.NewReader(data[:len(data)-2]))
	assert.Error(t, err)
}

func TestShortString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", false},
		{"simple", "hello", false},
		{"max length", strings.Repeat("a", 255), false},
		{"too long", strings.Repeat("a", 256), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := WriteShortString(&buf, tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.input)+1, buf.Len())

			got, err := ReadShortString(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.input, got)
		})
	}
}

func TestLongString(t *testing.T) {
	for _, size := range []int{0, 1, 1000, 70000} {
		input := bytes.Repeat([]byte{'x'}, size)

		var buf bytes.Buffer
		require.NoError(t, WriteLongString(&buf, input))
		assert.Equal(t, size+4, buf.Len())

		got, err := ReadLongString(&buf)
		require.NoError(t, err)
		assert.Equal(t, input, got)
	}
}

func BenchmarkTableEncoding(b *testing.B) {
	table := Table{
		"string": "hello world",
		"int":    int32(42),
		"bool":   true,
		"nested": Table{"key": "value"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		_ = WriteTable(&buf, table)
	}
}

func BenchmarkTableDecoding(b *testing.B) {
	var buf bytes.Buffer
	_ = WriteTable(&buf, Table{
		"string": "hello world",
		"int":    int32(42),
		"bool":   true,
		"nested": Table{"key": "value"},
	})
	data := buf.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ReadTable(bytes.NewReader(data))
	}
}
