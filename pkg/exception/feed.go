package exception

import "github.com/yanun0323/errors"

// Feed errors
var (
	ErrFetchStatus    = errors.New("fetch: unexpected http status")
	ErrFetchEmptyBody = errors.New("fetch: empty response body")
)
