package objdisk

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
)

//Mode represents the compression applied to remote objects
type Mode uint8

//The supported compression modes
const (
	ModeIdentity Mode = iota
	ModeUnknown
	ModeS2
	ModeGzip

	extS2   = ".s2"
	extGzip = ".gz"
)

//ModeFromExt recovers the compression Mode an object was stored with from
// the extension of its object name
func ModeFromExt(ext string) Mode {
	switch ext {
	case "":
		return ModeIdentity
	case extS2:
		return ModeS2
	case extGzip:
		return ModeGzip
	}
	return ModeUnknown
}

//Ext returns the object name extension objects of this Mode are stored under
func (m Mode) Ext() string {
	switch m {
	case ModeS2:
		return extS2
	case ModeGzip:
		return extGzip
	}
	return ""
}

//String fulfills fmt.Stringer
func (m Mode) String() string {
	switch m {
	case ModeIdentity:
		return "identity"
	case ModeS2:
		return "s2"
	case ModeGzip:
		return "gzip"
	}
	return "unknown"
}

//NewReader wraps the provided reader in stream decompression as appropriate
// for this Mode. The result may itself be an io.Closer that must be closed.
func (m Mode) NewReader(rdr io.Reader) (io.Reader, error) {
	switch m {
	case ModeIdentity:
		return rdr, nil
	case ModeS2:
		return s2.NewReader(rdr), nil
	case ModeGzip:
		return gzip.NewReader(rdr)
	}
	return nil, fmt.Errorf("Compression mode %d is not usable", m)
}

//NewWriter wraps the provided writer in stream compression as appropriate
// for this Mode; the result must be closed to flush trailing frames
func (m Mode) NewWriter(wtr io.Writer) (io.WriteCloser, error) {
	switch m {
	case ModeIdentity:
		return nopWriteCloser{wtr}, nil
	case ModeS2:
		return s2.NewWriter(wtr), nil
	case ModeGzip:
		return gzip.NewWriter(wtr), nil
	}
	return nil, fmt.Errorf("Compression mode %d is not usable", m)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
