package engine

import "github.com/zeebo/errs"

// Error is the error class for the engine package.
var Error = errs.Class("engine")

// ErrTruncationRefused is returned by Initialize when a non-incremental run
// is attempted against a database written incrementally, or vice versa.
var ErrTruncationRefused = Error.New("cannot switch between incremental and non-incremental mode without truncating; pass a fresh database or allow truncation")

// ErrIncompatibleDatabase is the class of errors Initialize returns when the
// sysnode's byte-order sentinel, type sizes, or app version predate what
// this build supports; New is called with Sysnode.CompatibilityError's text.
var ErrIncompatibleDatabase = errs.Class("incompatible database")

// ErrMissingDependency is returned by restore when a required child row is
// absent.
var ErrMissingDependency = Error.New("required dependent record is missing")
