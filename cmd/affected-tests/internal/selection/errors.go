// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package selection

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPattern indicates a malformed discovery glob.
	ErrInvalidPattern = errors.New("invalid test pattern")

	// ErrCandidatePanic marks a CandidateError caused by a recovered panic.
	ErrCandidatePanic = errors.New("panic while building closure")

	// ErrNilClosure marks a builder that returned neither a closure nor
	// an error.
	ErrNilClosure = errors.New("builder returned no closure")
)

// CandidateError records a candidate whose closure could not be built.
// The candidate is selected.
type CandidateError struct {
	// Path is the root-relative candidate path.
	Path string

	Err error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("candidate %s: %v", e.Path, e.Err)
}

func (e *CandidateError) Unwrap() error {
	return e.Err
}
