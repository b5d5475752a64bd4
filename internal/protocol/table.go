package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"
)

var (
	// ErrMismatch is the root of every "the peer speaks something we don't" error.
	ErrMismatch = errors.New("protocol mismatch")

	// ErrUnknownMethod is returned for class/method ids outside the known set.
	ErrUnknownMethod = fmt.Errorf("%w: unknown method", ErrMismatch)

	// ErrMalformed is returned when method arguments do not match their layout.
	ErrMalformed = fmt.Errorf("%w: malformed arguments", ErrMismatch)
)

// Table represents an AMQP field table
type Table map[string]interface{}

// Decimal is the AMQP decimal field value: Value * 10^-Scale.
type Decimal struct {
	Scale uint8
	Value int32
}

// ReadShortString reads a short string (max 255 bytes)
func ReadShortString(r io.Reader) (string, error) {
	var length [1]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return "", err
	}

	buf := make([]byte, length[0])
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}

	return string(buf), nil
}

// WriteShortString writes a short string
func WriteShortString(w io.Writer, s string) error {
	if len(s) > math.MaxUint8 {
		return fmt.Errorf("short string too long: %d", len(s))
	}

	if _, err := w.Write([]byte{byte(len(s))}); err != nil {
		return err
	}

	_, err := io.WriteString(w, s)
	return err
}

// ReadLongString reads a long string
func ReadLongString(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// WriteLongString writes a long string
func WriteLongString(w io.Writer, data []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}

	_, err := w.Write(data)
	return err
}

// ReadTable reads an AMQP field table
func ReadTable(r io.Reader) (Table, error) {
	data, err := ReadLongString(r)
	if err != nil {
		return nil, err
	}

	table := make(Table)
	buf := bytes.NewReader(data)

	for buf.Len() > 0 {
		name, err := ReadShortString(buf)
		if err != nil {
			return nil, fmt.Errorf("%w: table field name: %v", ErrMalformed, err)
		}

		value, err := readFieldValue(buf)
		if err != nil {
			return nil, fmt.Errorf("table field %q: %w", name, err)
		}

		table[name] = value
	}

	return table, nil
}

// WriteTable writes an AMQP field table. Keys are written in sorted order so
// the encoding of a given table is stable.
func WriteTable(w io.Writer, table Table) error {
	var buf bytes.Buffer

	keys := make([]string, 0, len(table))
	for name := range table {
		keys = append(keys, name)
	}
	sort.Strings(keys)

	for _, name := range keys {
		if err := WriteShortString(&buf, name); err != nil {
			return err
		}
		if err := writeFieldValue(&buf, table[name]); err != nil {
			return fmt.Errorf("table field %q: %w", name, err)
		}
	}

	return WriteLongString(w, buf.Bytes())
}

// readFieldValue reads a field value based on its type indicator
func readFieldValue(r io.Reader) (interface{}, error) {
	var indicator [1]byte
	if _, err := io.ReadFull(r, indicator[:]); err != nil {
		return nil, err
	}

	switch indicator[0] {
	case 't':
		var b uint8
		err := binary.Read(r, binary.BigEndian, &b)
		return b != 0, err

	case 'b':
		var v int8
		err := binary.Read(r, binary.BigEndian, &v)
		return v, err

	case 'B':
		var v uint8
		err := binary.Read(r, binary.BigEndian, &v)
		return v, err

	case 's':
		var v int16
		err := binary.Read(r, binary.BigEndian, &v)
		return v, err

	case 'u':
		var v uint16
		err := binary.Read(r, binary.BigEndian, &v)
		return v, err

	case 'I':
		var v int32
		err := binary.Read(r, binary.BigEndian, &v)
		return v, err

	case 'i':
		var v uint32
		err := binary.Read(r, binary.BigEndian, &v)
		return v, err

	case 'l':
		var v int64
		err := binary.Read(r, binary.BigEndian, &v)
		return v, err

	case 'f':
		var v float32
		err := binary.Read(r, binary.BigEndian, &v)
		return v, err

	case 'd':
		var v float64
		err := binary.Read(r, binary.BigEndian, &v)
		return v, err

	case 'D':
		var d Decimal
		if err := binary.Read(r, binary.BigEndian, &d.Scale); err != nil {
			return nil, err
		}
		err := binary.Read(r, binary.BigEndian, &d.Value)
		return d, err

	case 'S':
		s, err := ReadLongString(r)
		if err != nil {
			return nil, err
		}
		return string(s), nil

	case 'x':
		return ReadLongString(r)

	case 'A':
		return readArray(r)

	case 'T':
		var ts int64
		if err := binary.Read(r, binary.BigEndian, &ts); err != nil {
			return nil, err
		}
		return time.Unix(ts, 0), nil

	case 'F':
		return ReadTable(r)

	case 'V':
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: unknown field type %q", ErrMalformed, indicator[0])
	}
}

// writeFieldValue writes a field value with its type indicator
func writeFieldValue(w io.Writer, value interface{}) error {
	put := func(indicator byte, v interface{}) error {
		if _, err := w.Write([]byte{indicator}); err != nil {
			return err
		}
		if v == nil {
			return nil
		}
		return binary.Write(w, binary.BigEndian, v)
	}

	switch v := value.(type) {
	case bool:
		var b uint8
		if v {
			b = 1
		}
		return put('t', b)
	case int8:
		return put('b', v)
	case uint8:
		return put('B', v)
	case int16:
		return put('s', v)
	case uint16:
		return put('u', v)
	case int32:
		return put('I', v)
	case uint32:
		return put('i', v)
	case int64:
		return put('l', v)
	case int:
		return put('l', int64(v))
	case float32:
		return put('f', v)
	case float64:
		return put('d', v)
	case Decimal:
		if err := put('D', v.Scale); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, v.Value)
	case string:
		if err := put('S', nil); err != nil {
			return err
		}
		return WriteLongString(w, []byte(v))
	case []byte:
		if err := put('x', nil); err != nil {
			return err
		}
		return WriteLongString(w, v)
	case time.Time:
		return put('T', v.Unix())
	case Table:
		if err := put('F', nil); err != nil {
			return err
		}
		return WriteTable(w, v)
	case map[string]interface{}:
		if err := put('F', nil); err != nil {
			return err
		}
		return WriteTable(w, Table(v))
	case []interface{}:
		if err := put('A', nil); err != nil {
			return err
		}
		return writeArray(w, v)
	case nil:
		return put('V', nil)
	default:
		return fmt.Errorf("unsupported field value type: %T", value)
	}
}

// readArray reads an array of field values
func readArray(r io.Reader) ([]interface{}, error) {
	data, err := ReadLongString(r)
	if err != nil {
		return nil, err
	}

	values := []interface{}{}
	buf := bytes.NewReader(data)

	for buf.Len() > 0 {
		value, err := readFieldValue(buf)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}

	return values, nil
}

// writeArray writes an array of field values
func writeArray(w io.Writer, values []interface{}) error {
	var buf bytes.Buffer

	for _, value := range values {
		if err := writeFieldValue(&buf, value); err != nil {
			return err
		}
	}

	return WriteLongString(w, buf.Bytes())
}
