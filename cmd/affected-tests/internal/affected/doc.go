// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package affected runs one end-to-end test selection.
//
// A run is strictly ordered:
//
//	┌──────────────┐   ┌────────────────┐   ┌───────────────────┐   ┌──────────┐
//	│ clear        │──▶│ change set     │──▶│ override policy   │──▶│ discover │
//	│ sentinel     │   │ (git / patch / │   │ run_all ─▶ stop   │   │ + select │
//	└──────────────┘   │  static)       │   └───────────────────┘   └────┬─────┘
//	                   └───────┬────────┘                                │
//	                           │ empty ─▶ write empty                    ▼
//	                                                              write sentinel
//
// Any fatal error leaves the sentinel absent, which the test runner reads
// as "run everything".
package affected
