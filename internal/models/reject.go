package models

// RejectReason enumerates why a row was skipped during ingestion. Keeping
// this a closed set (rather than free-text errors) keeps batch statistics
// aggregable.
type RejectReason string

const (
	RejectTooFewColumns  RejectReason = "Not enough columns"
	RejectBadDate        RejectReason = "Unparseable date"
	RejectBadAmount      RejectReason = "Unparseable amount"
	RejectMissingKey     RejectReason = "Missing natural key"
	RejectUnknownChannel RejectReason = "Unrecognized bank channel"
	RejectBadMutation    RejectReason = "Unparseable mutation line"
	RejectWriteFailed    RejectReason = "Row could not be persisted"
)
