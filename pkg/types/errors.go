package types

import "errors"

// Error classes surfaced by the engine. Concrete errors wrap one of these.
var (
	// ErrStorage means the underlying store could not be opened or written.
	// It is the only class a search call propagates.
	ErrStorage = errors.New("storage error")

	// ErrIndexing marks a structural failure of an index_paper call.
	ErrIndexing = errors.New("indexing error")

	// ErrConfiguration marks an unusable vector backend or embedding model.
	ErrConfiguration = errors.New("configuration error")

	// ErrQuery marks a query the lexical backend could not execute.
	ErrQuery = errors.New("query error")

	// ErrInvalidInput is returned for rejected arguments.
	ErrInvalidInput = errors.New("invalid input")
)

// Validation errors
var (
	ErrEmptyPaperID = errors.New("paper_id cannot be empty")
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrEmptyQuery   = errors.New("query cannot be empty")
)
