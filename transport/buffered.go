package transport

import (
	"bufio"
	"io"
	"time"
)

const DefaultBufferSize = 8 << 10

// Buffered carries raw protocol bytes. Writes are held in memory until Flush.
type Buffered struct {
	conn io.ReadWriteCloser
	r    *bufio.Reader
	w    *bufio.Writer
}

// NewBuffered wraps conn with read and write buffers of the given size (or
// DefaultBufferSize when size <= 0).
func NewBuffered(conn io.ReadWriteCloser, size int) *Buffered {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Buffered{
		conn: conn,
		r:    bufio.NewReaderSize(conn, size),
		w:    bufio.NewWriterSize(conn, size),
	}
}

func (b *Buffered) Read(p []byte) (int, error)  { return b.r.Read(p) }
func (b *Buffered) Write(p []byte) (int, error) { return b.w.Write(p) }
func (b *Buffered) Flush() error                { return b.w.Flush() }
func (b *Buffered) Close() error                { return b.conn.Close() }

func (b *Buffered) SetDeadline(t time.Time) error {
	return setDeadline(b.conn, t)
}
