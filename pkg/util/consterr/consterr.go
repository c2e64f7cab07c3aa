package consterr

//ConstErr is an error that can be declared as a constant, letting packages
// expose sentinel errors that no caller (or data race) can reassign
type ConstErr string

//Error returns the value of the underlying string
func (errstr ConstErr) Error() string { return string(errstr) }

var _ error = ConstErr("") //compile time type check
