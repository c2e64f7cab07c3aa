package strms

import (
	"io"
)

type readFirstCloseList struct {
	io.Reader
	closers []io.Closer
}

var _ io.ReadCloser = readFirstCloseList{}

//NewReadFirstCloseList wraps a reader so that closing it closes the provided
// closers instead. Useful when an io.Reader, such as a decompressor, wraps an
// io.ReadCloser that still needs closing.
func NewReadFirstCloseList(rdr io.Reader, closers ...io.Closer) io.ReadCloser {
	return readFirstCloseList{
		Reader:  rdr,
		closers: closers,
	}
}

func (rfca readFirstCloseList) Close() (err error) {
	for _, closer := range rfca.closers {
		if clsrErr := closer.Close(); clsrErr != nil && err == nil {
			err = clsrErr
		}
	}
	return err
}
