package strms

import (
	"io"
)

//WriterAtWriter is io.WriterAt + io.Writer
type WriterAtWriter interface {
	io.WriterAt
	io.Writer
}

type writeAtWriter struct {
	cur int64 //we protect the underlying writer's position
	io.WriterAt
}

var _ io.Writer = (*writeAtWriter)(nil)

//NewWriteAtWriter returns a writer that uses an io.WriterAt's WriteAt in
// conjunction with its own position counter, seeded with start. See
// NewReadAtReader for why this is often useful.
func NewWriteAtWriter(wtrAt io.WriterAt, start int64) WriterAtWriter {
	return &writeAtWriter{
		cur:      start,
		WriterAt: wtrAt,
	}
}

func (waw *writeAtWriter) Write(buf []byte) (n int, err error) {
	n, err = waw.WriteAt(buf, waw.cur)
	waw.cur += int64(n)
	return n, err
}
