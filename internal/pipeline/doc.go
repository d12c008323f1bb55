// Package pipeline runs one ingestion pass: scan a source directory, classify
// and sort each media file in turn, then write the run report.
//
// Files are processed strictly one after another. Cancellation is checked
// between files, never inside a sort, so an interrupted run leaves every file
// either fully moved or untouched on the card.
package pipeline
