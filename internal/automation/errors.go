package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when an automation ID does not exist.
	ErrNotFound = errors.New("automation: not found")

	// ErrExists is returned when creating an automation with an ID that already exists.
	ErrExists = errors.New("automation: already exists")

	// ErrInvalid is returned when automation validation fails.
	ErrInvalid = errors.New("automation: invalid")

	// ErrInvalidTrigger is returned when a trigger definition is invalid.
	ErrInvalidTrigger = errors.New("automation: invalid trigger")

	// ErrInvalidCondition is returned when a condition definition is invalid.
	ErrInvalidCondition = errors.New("automation: invalid condition")

	// ErrInvalidAction is returned when an action definition is invalid.
	ErrInvalidAction = errors.New("automation: invalid action")

	// ErrFiringNotFound is returned when a firing record ID does not exist.
	ErrFiringNotFound = errors.New("automation: firing not found")
)
