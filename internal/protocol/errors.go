package protocol

import "errors"

// ErrEncryptionUnavailable is returned when a room requires end-to-end
// encryption but the client has no working crypto.
var ErrEncryptionUnavailable = errors.New("room is encrypted but encryption is not available")

// ErrRoomNotFound is returned for rooms the client does not know.
var ErrRoomNotFound = errors.New("room not found")
