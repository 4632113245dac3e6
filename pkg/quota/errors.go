package quota

import "errors"

var (
	ErrStoreUnavailable = errors.New("quota store unavailable")
	ErrGateClosed       = errors.New("quota gate closed")
)
