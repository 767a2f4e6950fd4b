// Package memory provides long-term, per-user, per-character dialogue memory
// for conversational agents.
//
// Raw turns are never stored verbatim. A background Consolidator periodically
// distills recent dialogue into durable facts and summaries, and merges the
// accumulated facts into a single contradiction-free user profile. The profile
// log is append-only: the active profile is always the newest item, and when
// two facts conflict the newer one wins.
//
// Architecture:
//   - VectorStore: similarity + metadata-filter storage backend
//     (store/local for tests, store/sqlite for persistence,
//     store/chromem for the static knowledge collection)
//   - Store: typed facade over VectorStore — item lifecycle, role taxonomy,
//     retention cleanup, profile read/write
//   - Consolidator: cadence-driven fact extraction, summarization, and
//     profile merge through an external LLM
//
// Integration:
//   - Before a reply: query the Store for the user profile and similar
//     facts/summaries
//   - After a reply: dispatch Consolidator.Process and the retention sweep
//     as fire-and-forget background tasks
package memory
