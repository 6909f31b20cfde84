package localstore

import "errors"

// ErrCorrupt marks a stored value that could not be decoded.
var ErrCorrupt = errors.New("local store value is corrupt")
