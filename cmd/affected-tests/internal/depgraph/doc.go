// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package depgraph computes the transitive dependency closure of a file.
//
// # Description
//
// The Indexer walks imports depth-first from an entry file, resolving each
// specifier and following only edges to project files. Vendored packages
// and runtime builtins are pruned. Specifiers that cannot be resolved are
// collected on the returned Closure and do not stop the walk.
//
// # Example
//
//	idx := depgraph.NewIndexer(scanner, resolver)
//	closure, err := idx.BuildClosure(ctx, "/repo/ui/shared/forum/chats.pw.tsx")
//	if err != nil {
//	    // the caller selects the candidate conservatively
//	}
//	if closure.Intersects(changes.Contains) { ... }
//
// Nothing is cached between calls; every closure is rebuilt from disk.
package depgraph
