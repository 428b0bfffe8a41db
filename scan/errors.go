package scan

import "errors"

var (
	// ErrOpen indicates that the isolated engine handle could not be opened.
	ErrOpen = errors.New("scan: cannot open interface")

	// ErrEnumerate indicates that device enumeration failed.
	ErrEnumerate = errors.New("scan: enumeration failed")

	// ErrDecode indicates a malformed encoded snapshot.
	ErrDecode = errors.New("scan: malformed snapshot")
)
