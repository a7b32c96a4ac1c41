// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package changeset acquires the set of files that differ between two
// revisions of the project.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                          Provider                            │
//	│         ChangedFiles(ctx) (*ChangeSet, error)                │
//	├──────────────────┬─────────────────────┬─────────────────────┤
//	│   GitProvider    │    PatchProvider    │   StaticProvider    │
//	│ git diff base    │ unified diff file   │ explicit list       │
//	│ head (one call)  │ (go-diff parser)    │ (--files)           │
//	└──────────────────┴─────────────────────┴─────────────────────┘
//
// A ChangeSet holds cleaned absolute paths under the project root. An
// empty ChangeSet is a valid result and means "no changes"; a failed git
// invocation is an *ExecutionError and must never be read as "no changes".
package changeset
