package session

import (
	"bytes"
	"fmt"
	"strconv"
)

// Decode parses a raw session payload into its named entries. The payload is
// zero or more `name|value` entries concatenated with no delimiter between
// entries; each value is in the PHP serialize() scalar/array grammar, which
// is self-delimiting, so the end of one entry is the start of the next name.
//
// Parsing stops at the first entry that cannot be decoded. That is treated
// as end-of-session, not an error: the entries decoded so far are returned.
func Decode(payload []byte) map[string]interface{} {
	entries := make(map[string]interface{})

	offset := 0
	for offset < len(payload) {
		pipe := bytes.IndexByte(payload[offset:], '|')
		if pipe < 0 {
			break
		}

		name := string(payload[offset : offset+pipe])
		d := &decoder{data: payload, pos: offset + pipe + 1}

		value, err := d.value()
		if err != nil {
			break
		}

		entries[name] = value
		offset = d.pos
	}

	return entries
}

// decoder is a cursor over a serialized payload. Every production consumes
// exactly the bytes of one value, leaving pos at the byte after it.
type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) value() (interface{}, error) {
	if d.pos >= len(d.data) {
		return nil, fmt.Errorf("unexpected end of data at offset %d", d.pos)
	}

	switch d.data[d.pos] {
	case 's':
		return d.stringValue()
	case 'i':
		n, err := d.scanInt('i')
		if err != nil {
			return nil, err
		}
		return n, nil
	case 'b':
		n, err := d.scanInt('b')
		if err != nil {
			return nil, err
		}
		return n != 0, nil
	case 'd':
		return d.floatValue()
	case 'N':
		if err := d.expect([]byte("N;")); err != nil {
			return nil, err
		}
		return nil, nil
	case 'a':
		return d.arrayValue()
	default:
		return nil, fmt.Errorf("unknown type tag %q at offset %d", d.data[d.pos], d.pos)
	}
}

// stringValue parses s:<len>:"<bytes>"; where <len> is the exact byte count.
func (d *decoder) stringValue() (interface{}, error) {
	if err := d.expect([]byte("s:")); err != nil {
		return nil, err
	}

	length, err := d.digits()
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fmt.Errorf("negative string length %d at offset %d", length, d.pos)
	}

	if err := d.expect([]byte(`:"`)); err != nil {
		return nil, err
	}

	if d.pos+int(length) > len(d.data) {
		return nil, fmt.Errorf("string length %d exceeds remaining data", length)
	}
	s := string(d.data[d.pos : d.pos+int(length)])
	d.pos += int(length)

	if err := d.expect([]byte(`";`)); err != nil {
		return nil, err
	}

	return s, nil
}

// scanInt parses <tag>:<digits>; used for both i (integer) and b (boolean).
func (d *decoder) scanInt(tag byte) (int64, error) {
	if err := d.expect([]byte{tag, ':'}); err != nil {
		return 0, err
	}

	n, err := d.digits()
	if err != nil {
		return 0, err
	}

	if err := d.expect([]byte{';'}); err != nil {
		return 0, err
	}

	return n, nil
}

// floatValue parses d:<float>;
func (d *decoder) floatValue() (interface{}, error) {
	if err := d.expect([]byte("d:")); err != nil {
		return nil, err
	}

	end := bytes.IndexByte(d.data[d.pos:], ';')
	if end < 0 {
		return nil, fmt.Errorf("unterminated float at offset %d", d.pos)
	}

	f, err := strconv.ParseFloat(string(d.data[d.pos:d.pos+end]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid float at offset %d: %w", d.pos, err)
	}
	d.pos += end + 1

	return f, nil
}

// arrayValue parses a:<count>:{<key><value>...}. Keys are integers or
// strings; integer keys are rendered in decimal so the result is a uniform
// string-keyed map.
func (d *decoder) arrayValue() (interface{}, error) {
	if err := d.expect([]byte("a:")); err != nil {
		return nil, err
	}

	count, err := d.digits()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("negative array count %d at offset %d", count, d.pos)
	}

	if err := d.expect([]byte(":{")); err != nil {
		return nil, err
	}

	m := make(map[string]interface{}, count)
	for i := int64(0); i < count; i++ {
		key, err := d.value()
		if err != nil {
			return nil, err
		}

		value, err := d.value()
		if err != nil {
			return nil, err
		}

		switch k := key.(type) {
		case string:
			m[k] = value
		case int64:
			m[strconv.FormatInt(k, 10)] = value
		default:
			return nil, fmt.Errorf("unsupported array key type %T", key)
		}
	}

	if err := d.expect([]byte("}")); err != nil {
		return nil, err
	}

	return m, nil
}

// digits parses an optionally signed decimal integer without consuming the
// terminator that follows it.
func (d *decoder) digits() (int64, error) {
	start := d.pos
	if d.pos < len(d.data) && (d.data[d.pos] == '-' || d.data[d.pos] == '+') {
		d.pos++
	}
	for d.pos < len(d.data) && d.data[d.pos] >= '0' && d.data[d.pos] <= '9' {
		d.pos++
	}
	if d.pos == start {
		return 0, fmt.Errorf("expected digits at offset %d", start)
	}

	n, err := strconv.ParseInt(string(d.data[start:d.pos]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer at offset %d: %w", start, err)
	}
	return n, nil
}

func (d *decoder) expect(literal []byte) error {
	if d.pos+len(literal) > len(d.data) || !bytes.Equal(d.data[d.pos:d.pos+len(literal)], literal) {
		return fmt.Errorf("expected %q at offset %d", literal, d.pos)
	}
	d.pos += len(literal)
	return nil
}
