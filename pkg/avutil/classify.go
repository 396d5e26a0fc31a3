package avutil

import (
	"errors"

	"github.com/asticode/go-astiav"
)

// Classify maps a raw astiav error into this module's Kind taxonomy. Every
// stage package funnels native errors through this function at its
// boundary so callers only ever see avutil.Error.
func Classify(component string, err error) *Error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, astiav.ErrEagain):
		return New(component, KindTryAgain, "native backend signaled try-again")
	case errors.Is(err, astiav.ErrEof):
		return New(component, KindEndOfStream, "native backend signaled end-of-stream")
	case errors.Is(err, astiav.ErrInvalidArgument):
		return Newf(component, KindInvalidArgument, "%v", err)
	case errors.Is(err, astiav.ErrEnomem):
		return Newf(component, KindResourceExhausted, "%v", err)
	default:
		return Newf(component, KindMalformedInput, "%v", err)
	}
}
