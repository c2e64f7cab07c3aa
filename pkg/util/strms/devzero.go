package strms

import (
	"io"

	"github.com/tarndt/blockio/pkg/util"
)

//DevZero is like /dev/zero for reading and /dev/null for writing; handy as a
// source when zero-filling newly created disk files
var DevZero devZero

type devZero struct{}

var _ io.ReadWriter = devZero{}

func (devZero) Read(buf []byte) (int, error) {
	util.ZeroFill(buf)
	return len(buf), nil
}

func (devZero) Write(buf []byte) (int, error) {
	return len(buf), nil
}
