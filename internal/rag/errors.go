package rag

import "errors"

// ErrRetrievalUnavailable wraps failures of the embedding endpoint or the
// vector index during retrieval. The API maps it to 503.
var ErrRetrievalUnavailable = errors.New("retrieval service unavailable")
