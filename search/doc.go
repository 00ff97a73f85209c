// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package search provides hybrid retrieval over ingested papers.
//
// The Searcher type implements a multi-stage search algorithm that combines:
//   - Keyword search over paper titles/abstracts and section bodies
//   - Semantic nearest-neighbor search over section embeddings
//   - Reciprocal Rank Fusion to merge the two ranked candidate sets
//
// Only papers that completed ingestion (status ready) are returned, and
// semantic failures degrade the search to keyword-only results instead of
// failing it. The package also answers extraction keyword queries and
// related-paper graph queries over citations and shared entities.
package search
