package rewards

import "errors"

var (
	ErrInvalidPlatform = errors.New("unsupported share platform")
	ErrInvalidOrder    = errors.New("invalid order reference")
	ErrNothingToAward  = errors.New("computed reward is zero")
)
