package decoder

import "fmt"

type ErrArgument struct {
	Index  int
	Reason string
}

func (e ErrArgument) Error() string {
	return fmt.Sprintf("argument %d: %s", e.Index, e.Reason)
}

type ErrInvalidPath struct {
	Reason string
}

func (e ErrInvalidPath) Error() string {
	return "invalid swap path: " + e.Reason
}

type ErrShortCalldata struct {
	Length int
}

func (e ErrShortCalldata) Error() string {
	return fmt.Sprintf("calldata too short: %d bytes", e.Length)
}

type ErrSelectorMismatch struct {
	Want string
	Got  string
}

func (e ErrSelectorMismatch) Error() string {
	return "unexpected selector " + e.Got + ", want " + e.Want
}
