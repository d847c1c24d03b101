package split

import "context"

// ReadOutcome distinguishes an absent document from a store failure, so
// callers can keep defaults-on-absence behavior while still logging faults.
type ReadOutcome int

const (
	ReadFound ReadOutcome = iota
	ReadNotFound
	ReadFailed
)

// ReadResult is the outcome of a point read. Doc is non-nil only for
// ReadFound; Err is non-nil only for ReadFailed.
type ReadResult struct {
	Outcome ReadOutcome
	Doc     *Document
	Err     error
}

// ConfigStore is the site-config document container: point reads by
// (docID, wallet) partition and full-document upserts.
type ConfigStore interface {
	Read(ctx context.Context, docID, wallet string) ReadResult
	Upsert(ctx context.Context, doc *Document) error
}
