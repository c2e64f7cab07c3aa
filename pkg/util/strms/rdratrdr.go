package strms

import (
	"io"
)

//ReadAtReader is io.ReaderAt + io.Reader
type ReadAtReader interface {
	io.ReaderAt
	io.Reader
}

type readAtReader struct {
	cur int64 //we protect the underlying reader's position
	io.ReaderAt
}

var _ io.Reader = (*readAtReader)(nil)

//NewReadAtReader returns a reader that uses an io.ReaderAt's ReadAt in
// conjunction with its own position counter. This is useful when you have an
// io.ReaderAt that is not also an io.Reader, or want to stream from a shared
// io.ReaderAt without disturbing anyone else's position. The counter may be
// seeded with start to stream a suffix, such as one segment of a device.
func NewReadAtReader(rdrAt io.ReaderAt, start int64) ReadAtReader {
	return &readAtReader{
		cur:      start,
		ReaderAt: rdrAt,
	}
}

func (rar *readAtReader) Read(buf []byte) (n int, err error) {
	n, err = rar.ReadAt(buf, rar.cur)
	rar.cur += int64(n)
	return n, err
}
