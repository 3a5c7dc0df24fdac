package shamir

import "errors"

var (
	ErrInvalidParameter = errors.New("shamir: invalid parameter")
	ErrMismatchedShares = errors.New("shamir: mismatched shares: different bit settings")
	ErrMalformedShare   = errors.New("shamir: malformed share")
	ErrNoShares         = errors.New("shamir: no shares provided")
)
