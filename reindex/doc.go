// Package reindex rebuilds the section vector index for every ready paper,
// typically after switching embedding models.
//
// This package supports paged iteration over papers, progress tracking,
// retry logic with exponential backoff, and vector normalization to ensure
// compatibility with cosine similarity search.
package reindex
