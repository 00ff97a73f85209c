// Package ingestion provides pipeline orchestration for ingesting papers.
//
// The Pipeline type owns the paper lifecycle. Submit creates a paper in the
// queued state and publishes the first stage message; HandleMessage consumes
// stage messages from the queue and runs the matching stage handler:
//
//   - metadata: fetch bibliographic data from the catalog, write author
//     entity links, resolve citations from other papers pointing here
//   - content: fetch the HTML rendition (or PDF text as fallback), archive
//     the raw document, parse sections and references
//   - extraction: prompt the LLM per section for typed knowledge items
//   - embedding: embed section text into the vector index, best effort
//
// Each handler persists its results and advances the paper's status; the
// driver loop in HandleMessage enqueues the next stage. Stage handlers are
// safe to re-run: stage-owned rows are replaced, not appended.
package ingestion
