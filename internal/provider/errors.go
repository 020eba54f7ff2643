package provider

import (
	"context"
	"errors"
	"fmt"

	"riptide/internal/services"
)

// Aliases so collaborators only import this package.
var (
	ErrCancelled   = services.ErrCancelled
	ErrTransient   = services.ErrTransient
	ErrUnavailable = services.ErrUnavailable
)

// FetchError tags a metadata failure from service. Causes without a marker are
// treated as transient.
func FetchError(service string, err error) error {
	return tag("fetch", service, err)
}

// TransferError tags a media transfer failure from service. Causes without a
// marker are treated as transient; context cancellation maps to ErrCancelled.
func TransferError(service string, err error) error {
	return tag("transfer", service, err)
}

func tag(stage, service string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) && !services.HasMarker(err) {
		return services.Wrap(services.ErrCancelled, stage, service, "", err)
	}
	if services.HasMarker(err) {
		return fmt.Errorf("%s: %s: %w", stage, service, err)
	}
	return services.Wrap(services.ErrTransient, stage, service, "", err)
}
