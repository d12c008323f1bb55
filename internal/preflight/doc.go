// Package preflight provides readiness checks for the directories and
// external programs dadcam depends on.
//
// The CLI "dadcam doctor" command renders every check; "dadcam process" runs
// RunAll before touching a card and refuses to start when a required check
// fails.
package preflight
