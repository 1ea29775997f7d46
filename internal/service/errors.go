package service

import "errors"

var (
	// ErrRunInProgress is returned when a list already has an active run.
	ErrRunInProgress = errors.New("a run is already in progress for this list")
	// ErrInvalidRecipe wraps recipe validation failures.
	ErrInvalidRecipe = errors.New("invalid recipe")
	// ErrInvalidCriteria wraps qualification criteria validation failures.
	ErrInvalidCriteria = errors.New("invalid qualification criteria")
	// ErrListBusy is returned when a run is started while the list is being modified.
	ErrListBusy = errors.New("list is being modified")
	// ErrEmptyList is returned when a run targets a list without contacts.
	ErrEmptyList = errors.New("list has no contacts")
)

// CSVValidationError indicates that the provided CSV payload is invalid.
type CSVValidationError struct {
	Message string
}

// Error implements the error interface.
func (e CSVValidationError) Error() string {
	return e.Message
}
