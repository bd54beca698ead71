package chunk

import "errors"

// ErrDocument indicates a chunk document whose BSON skeleton does not
// match the structure the game writes: missing or mistyped Components,
// a mistyped section holder, or a Block payload shorter than its
// migration header.
var ErrDocument = errors.New("malformed chunk document")
