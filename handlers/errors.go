package handlers

import (
	"errors"

	"github.com/flowgate/flowgate/types"
)

// classifyDependencyErr turns a CRM/LLM client error into the matching
// Outcome, per spec.md §4.8's classification contract: a *types.Error
// carries its own Retryable verdict; anything else (bare network/timeout
// errors the client didn't wrap) defaults to transient.
func classifyDependencyErr(err error) types.Outcome {
	var typed *types.Error
	if errors.As(err, &typed) {
		if typed.Retryable {
			return types.TransientError(typed)
		}
		return types.PermanentError(typed)
	}
	return types.TransientError(err)
}
