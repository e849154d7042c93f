// SPDX-License-Identifier: ice License 1.0

package terror

// Public API.

type (
	// Err is an error enriched with structured data, so that callers can match on the sentinel
	// and still read the details (target, column, sql state, ...).
	Err struct {
		error
		Data map[string]any `json:"data"`
	}
)
