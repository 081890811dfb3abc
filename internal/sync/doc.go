// Package sync runs the fetch-and-aggregate pipeline.
//
// # Orchestrator
//
// Orchestrator.Run resolves the adapter of every registry entry and invokes
// it at most once, with at most K fetches in flight and a per-call deadline.
// Each task writes only its own result slot. Results are then folded in
// registry order, so the document and the emitted notices are deterministic:
//
//   - Fetched: the adapter returned a version; the entry is written
//   - Skipped: no adapter handles the source type; no entry, not an error
//   - Retained: the fetch failed and the previous entry was carried forward
//     (keep-previous policy)
//   - Failed: the fetch failed and no entry is written
//
// A timeout or failure of one tool never cancels the others, and Run itself
// never returns an error.
//
// # Pipeline
//
// Pipeline wraps a run with persistence: it loads the previous document
// (ignoring unreadable content), runs the orchestrator, writes the new
// document atomically and updates the optional status file. Only a failure
// to write the document is reported as an error.
package sync
