package sqldump

import (
	"bufio"
	"io"
)

// byteReader hands out a dump one byte at a time and tracks the offset
// reported in syntax errors.
type byteReader struct {
	r      *bufio.Reader
	offset int64
}

func newByteReader(r io.Reader) *byteReader {
	return &byteReader{r: bufio.NewReaderSize(r, 64*1024)}
}

func (b *byteReader) ReadByte() (byte, error) {
	c, err := b.r.ReadByte()
	if err == nil {
		b.offset++
	}
	return c, err
}

// Peek returns the next n bytes without consuming them. Fewer bytes are
// returned near the end of the stream.
func (b *byteReader) Peek(n int) []byte {
	buf, _ := b.r.Peek(n)
	return buf
}

func (b *byteReader) Offset() int64 {
	return b.offset
}
