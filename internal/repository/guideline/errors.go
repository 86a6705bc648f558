package guideline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/uxlens/uxlens/internal/domain"
)

// capabilityMarkers are server error fragments that mean a search feature is
// absent (module not loaded, index never created, syntax the server does not
// know) rather than the store being down.
var capabilityMarkers = []string{
	"unknown command",
	"unknown index name",
	"no such index",
	"unsupported",
	"wrong number of arguments",
	"syntax error",
}

// classify wraps capability-shaped errors with ErrCapabilityNotFound so the
// engine can tell "feature missing" from "store broken".
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range capabilityMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", domain.ErrCapabilityNotFound, err)
		}
	}
	return err
}

func isIndexExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "index already exists")
}

func errorsIsCapability(err error) bool {
	return errors.Is(err, domain.ErrCapabilityNotFound)
}
