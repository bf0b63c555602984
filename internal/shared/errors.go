package shared

import "errors"

// ErrActorRequired occurs when a mutating request carries no actor.
var ErrActorRequired = errors.New("actor id required")
