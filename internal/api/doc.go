// Package api implements the HTTP surface of the book assistant.
//
// Endpoints:
//
//	GET  /health                          liveness probe
//	GET  /ready                           readiness probe (database ping)
//	GET  /api/health                      aggregate dependency health
//	POST /api/chat                        chat with SSE streamed answer
//	GET  /api/sessions/{id}/messages      stored conversation history
//	POST /api/ingest                      admin-guarded re-indexing
//
// The chat endpoint streams data-only SSE frames: content fragments, one
// sources frame, then a [DONE] terminator. The session ID travels in the
// X-Session-Id response header so clients can continue the conversation.
package api
