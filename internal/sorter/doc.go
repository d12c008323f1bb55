// Package sorter relocates classified media into the destination tree.
//
// Every file goes through the same sequence: short-circuit on detection
// errors, reject paths that would escape the destination, hash the source,
// deduplicate against whatever already sits at the destination path, copy
// with metadata, verify the copy by hash, and only then delete the source.
// A source file is never removed before an identical copy is confirmed on
// the destination, so an interrupted run can always be repeated.
//
// The Sorter is the only writer of the destinations "detections" and
// "no_detections" subtrees.
package sorter
