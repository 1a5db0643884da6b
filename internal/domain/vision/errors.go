package vision

import "errors"

// ErrAnnotation indicates the service reported a logical failure for the
// image even though the transport call itself succeeded.
var ErrAnnotation = errors.New("vision annotation failed")
