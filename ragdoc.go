// Package ragdoc provides retrieval-augmented question answering over
// hierarchically structured documentation. It turns fetched pages into
// section trees, splits sections into overlapping token-bounded chunks,
// indexes them for semantic search and answers questions grounded on the
// retrieved chunks.
//
// This package contains domain types, interfaces and pure algorithms
// following Ben Johnson's Standard Package Layout. Implementations live in
// subdirectories named after their primary dependency (e.g., sqlite/,
// goquery/, gemini/).
package ragdoc
