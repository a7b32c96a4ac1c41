// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package imports

import (
	"errors"
	"fmt"
)

// Sentinel errors for scanning.
//
// # Example
//
//	_, err := scanner.Scan(ctx, path, content)
//	if errors.Is(err, imports.ErrFileTooLarge) {
//	    // the file is not analyzed; callers treat it as a failure
//	}
var (
	// ErrFileTooLarge indicates the file exceeds the scanner's size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")

	// ErrInvalidContent indicates the content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrUnsupportedFile indicates the file extension has no grammar.
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// ScanError records which file failed to scan.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
