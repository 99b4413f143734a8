package services

import (
	"errors"
	"fmt"

	"github.com/azatarm-prog/telegive-bot-service/internal/clients"
)

// ErrExternalService marks a failure in a sibling service. The interaction
// that triggered the call fails; nothing else is affected.
var ErrExternalService = errors.New("services: external service failure")

// ErrUnknownCallback is returned for callback payloads no handler claims.
var ErrUnknownCallback = errors.New("services: unknown callback payload")

// external wraps sibling-service failures under ErrExternalService while
// passing through application-level answers (4xx) untouched.
func external(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, clients.ErrUnavailable) || errors.Is(err, clients.ErrDisabled) {
		return fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	var se *clients.StatusError
	if errors.As(err, &se) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrExternalService, err)
}
