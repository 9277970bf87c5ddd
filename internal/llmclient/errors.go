package llmclient

import (
	"errors"
	"fmt"
	"strings"

	"contractrisk/internal/coreerr"
)

var errNoChoices = errors.New("llmclient: no choices returned")

// wrapProviderError classifies a raw SDK/HTTP error as transient (rate
// limit, timeout, 5xx) or permanent (bad request, auth, not found), so the
// retry layer knows whether to back off and retry or fail fast.
func wrapProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	transientMarkers := []string{"429", "500", "502", "503", "504", "rate limit", "timeout", "deadline exceeded", "overloaded", "connection reset"}
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%s: %w: %v", provider, coreerr.ErrLLMTransient, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", provider, coreerr.ErrLLMPermanent, err)
}
