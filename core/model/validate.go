package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the structural constraints of the event.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("event is nil")
	}
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid event %q: %w", e.ID(), err)
	}
	return nil
}

// Validate checks that the response names an event and a known opt type.
func (r EventResponse) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid event response: %w", err)
	}
	return nil
}
