package mqtt

import "errors"

// ErrInvalidPresence is returned for presence messages that cannot be applied.
var ErrInvalidPresence = errors.New("invalid presence message")
