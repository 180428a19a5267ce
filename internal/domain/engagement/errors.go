package engagement

import "errors"

var (
	// ErrUnknownAction is returned for an action with no configuration row
	ErrUnknownAction = errors.New("unknown engagement action")

	// ErrActionDisabled is returned when an operator has switched an action off
	ErrActionDisabled = errors.New("engagement action disabled")

	// ErrInvalidConfig is returned for an upsert with nonsensical values
	ErrInvalidConfig = errors.New("invalid engagement config")

	// ErrInvalidCampaign is returned for a campaign with an empty or inverted window
	ErrInvalidCampaign = errors.New("invalid campaign window")
)
