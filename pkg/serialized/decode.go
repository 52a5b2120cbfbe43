package serialized

import (
	"errors"
	"fmt"
	"strconv"
)

// MaxDepth bounds nesting so hostile input cannot exhaust the stack.
const MaxDepth = 512

// ErrMalformed is matched by every DecodeError.
var ErrMalformed = errors.New("malformed serialized data")

// DecodeError reports where decoding stopped.
type DecodeError struct {
	Offset int
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("serialized: %s at offset %d", e.Msg, e.Offset)
}

// Is lets errors.Is(err, ErrMalformed) match.
func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformed
}

type decoder struct {
	data  []byte
	pos   int
	depth int
}

// Decode parses data as a single serialized value. Bytes after the value are an error.
func Decode(data []byte) (*Value, error) {
	d := &decoder{data: data}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, d.errorf("unexpected trailing data")
	}
	return v, nil
}

// IsSerialized reports whether data decodes as a well-formed value.
func IsSerialized(data []byte) bool {
	_, err := Decode(data)
	return err == nil
}

func (d *decoder) errorf(format string, args ...any) error {
	return &DecodeError{Offset: d.pos, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) value() (*Value, error) {
	if d.pos >= len(d.data) {
		return nil, d.errorf("unexpected end of data")
	}
	tag := d.data[d.pos]
	switch tag {
	case 'N':
		d.pos++
		if err := d.expect(';'); err != nil {
			return nil, err
		}
		return &Value{Kind: KindNull}, nil
	case 'b':
		return d.scalar(KindBool, func(s string) bool { return s == "0" || s == "1" })
	case 'i':
		return d.scalar(KindInt, validInt)
	case 'd':
		return d.scalar(KindFloat, validFloat)
	case 'r', 'R':
		v, err := d.scalar(KindReference, validInt)
		if err != nil {
			return nil, err
		}
		v.RefTag = tag
		return v, nil
	case 's':
		d.pos++
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		payload, err := d.quoted()
		if err != nil {
			return nil, err
		}
		if err := d.expect(';'); err != nil {
			return nil, err
		}
		return &Value{Kind: KindString, Str: payload}, nil
	case 'E':
		d.pos++
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		payload, err := d.quoted()
		if err != nil {
			return nil, err
		}
		if err := d.expect(';'); err != nil {
			return nil, err
		}
		return &Value{Kind: KindEnum, Str: payload}, nil
	case 'a':
		d.pos++
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		entries, err := d.container()
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindArray, Entries: entries}, nil
	case 'O':
		d.pos++
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		class, err := d.quoted()
		if err != nil {
			return nil, err
		}
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		entries, err := d.container()
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindObject, Class: class, Entries: entries}, nil
	case 'C':
		return d.custom()
	default:
		return nil, d.errorf("unknown type tag %q", tag)
	}
}

// scalar reads "<tag>:<literal>;" and validates the literal.
func (d *decoder) scalar(kind Kind, valid func(string) bool) (*Value, error) {
	d.pos++
	if err := d.expect(':'); err != nil {
		return nil, err
	}
	start := d.pos
	lit, err := d.until(';')
	if err != nil {
		return nil, err
	}
	if !valid(lit) {
		d.pos = start
		return nil, d.errorf("invalid %s literal %q", kind, lit)
	}
	return &Value{Kind: kind, Scalar: lit}, nil
}

// container reads "<n>:{" followed by n key/value pairs and "}".
func (d *decoder) container() ([]Entry, error) {
	n, err := d.length(':')
	if err != nil {
		return nil, err
	}
	if err := d.expect('{'); err != nil {
		return nil, err
	}

	d.depth++
	if d.depth > MaxDepth {
		return nil, d.errorf("nesting deeper than %d", MaxDepth)
	}

	// A key and its value take at least six bytes.
	if n > (len(d.data)-d.pos)/6 {
		return nil, d.errorf("element count %d exceeds remaining input", n)
	}

	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		keyPos := d.pos
		key, err := d.value()
		if err != nil {
			return nil, err
		}
		if key.Kind != KindInt && key.Kind != KindString {
			d.pos = keyPos
			return nil, d.errorf("invalid key type %s", key.Kind)
		}
		val, err := d.value()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Value: val})
	}

	if err := d.expect('}'); err != nil {
		return nil, err
	}
	d.depth--
	return entries, nil
}

// custom reads C:<len>:"<class>":<len>:{<payload>}.
func (d *decoder) custom() (*Value, error) {
	d.pos++
	if err := d.expect(':'); err != nil {
		return nil, err
	}
	class, err := d.quoted()
	if err != nil {
		return nil, err
	}
	if err := d.expect(':'); err != nil {
		return nil, err
	}
	n, err := d.length(':')
	if err != nil {
		return nil, err
	}
	if err := d.expect('{'); err != nil {
		return nil, err
	}
	if n > len(d.data)-d.pos {
		return nil, d.errorf("custom payload length %d exceeds input", n)
	}
	payload := string(d.data[d.pos : d.pos+n])
	d.pos += n
	if err := d.expect('}'); err != nil {
		return nil, err
	}
	return &Value{Kind: KindCustom, Class: class, Str: payload}, nil
}

// quoted reads <len>:"<len bytes>".
func (d *decoder) quoted() (string, error) {
	n, err := d.length(':')
	if err != nil {
		return "", err
	}
	if err := d.expect('"'); err != nil {
		return "", err
	}
	if n > len(d.data)-d.pos {
		return "", d.errorf("string length %d exceeds input", n)
	}
	s := string(d.data[d.pos : d.pos+n])
	d.pos += n
	if err := d.expect('"'); err != nil {
		return "", err
	}
	return s, nil
}

// length reads a non-negative decimal followed by delim.
func (d *decoder) length(delim byte) (int, error) {
	start := d.pos
	lit, err := d.until(delim)
	if err != nil {
		return 0, err
	}
	if lit == "" {
		d.pos = start
		return 0, d.errorf("missing length")
	}
	for i := 0; i < len(lit); i++ {
		if lit[i] < '0' || lit[i] > '9' {
			d.pos = start
			return 0, d.errorf("invalid length %q", lit)
		}
	}
	n, err := strconv.Atoi(lit)
	if err != nil {
		d.pos = start
		return 0, d.errorf("invalid length %q", lit)
	}
	return n, nil
}

// until returns the bytes before the next delim and consumes the delim.
func (d *decoder) until(delim byte) (string, error) {
	start := d.pos
	for d.pos < len(d.data) {
		if d.data[d.pos] == delim {
			s := string(d.data[start:d.pos])
			d.pos++
			return s, nil
		}
		d.pos++
	}
	d.pos = start
	return "", d.errorf("missing %q", delim)
}

func (d *decoder) expect(b byte) error {
	if d.pos >= len(d.data) {
		return d.errorf("expected %q, got end of data", b)
	}
	if d.data[d.pos] != b {
		return d.errorf("expected %q, got %q", b, d.data[d.pos])
	}
	d.pos++
	return nil
}

func validInt(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '-' || s[0] == '+' {
		i = 1
	}
	if i == len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func validFloat(s string) bool {
	switch s {
	case "INF", "-INF", "NAN":
		return true
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
