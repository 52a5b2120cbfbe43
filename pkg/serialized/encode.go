package serialized

import (
	"bytes"
	"strconv"
)

// Encode serializes v. Every length prefix is computed from the current
// payload, so edited leaves produce a consistent result.
func (v *Value) Encode() []byte {
	var buf bytes.Buffer
	v.encode(&buf)
	return buf.Bytes()
}

func (v *Value) encode(buf *bytes.Buffer) {
	switch v.Kind {
	case KindNull:
		buf.WriteString("N;")
	case KindBool:
		buf.WriteString("b:")
		buf.WriteString(v.Scalar)
		buf.WriteByte(';')
	case KindInt:
		buf.WriteString("i:")
		buf.WriteString(v.Scalar)
		buf.WriteByte(';')
	case KindFloat:
		buf.WriteString("d:")
		buf.WriteString(v.Scalar)
		buf.WriteByte(';')
	case KindReference:
		tag := v.RefTag
		if tag == 0 {
			tag = 'r'
		}
		buf.WriteByte(tag)
		buf.WriteByte(':')
		buf.WriteString(v.Scalar)
		buf.WriteByte(';')
	case KindString:
		buf.WriteString("s:")
		writeQuoted(buf, v.Str)
		buf.WriteByte(';')
	case KindEnum:
		buf.WriteString("E:")
		writeQuoted(buf, v.Str)
		buf.WriteByte(';')
	case KindArray:
		buf.WriteString("a:")
		writeEntries(buf, v.Entries)
	case KindObject:
		buf.WriteString("O:")
		writeQuoted(buf, v.Class)
		buf.WriteByte(':')
		writeEntries(buf, v.Entries)
	case KindCustom:
		buf.WriteString("C:")
		writeQuoted(buf, v.Class)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(len(v.Str)))
		buf.WriteString(":{")
		buf.WriteString(v.Str)
		buf.WriteByte('}')
	}
}

// writeQuoted writes <byte length>:"<s>".
func writeQuoted(buf *bytes.Buffer, s string) {
	buf.WriteString(strconv.Itoa(len(s)))
	buf.WriteString(`:"`)
	buf.WriteString(s)
	buf.WriteByte('"')
}

func writeEntries(buf *bytes.Buffer, entries []Entry) {
	buf.WriteString(strconv.Itoa(len(entries)))
	buf.WriteString(":{")
	for _, e := range entries {
		e.Key.encode(buf)
		e.Value.encode(buf)
	}
	buf.WriteByte('}')
}
