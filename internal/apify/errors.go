package apify

import "errors"

var (
	// ErrRunFailed means the remote run ended in FAILED or timed out on the
	// provider side. Retrying the same input is unlikely to help.
	ErrRunFailed = errors.New("actor run failed")

	// ErrRunAborted means the remote run was aborted before finishing.
	ErrRunAborted = errors.New("actor run aborted")

	// ErrRunTimeout means the run did not reach a terminal status before the
	// local polling ceiling elapsed. The remote run may still be going.
	ErrRunTimeout = errors.New("timed out waiting for actor run")
)
