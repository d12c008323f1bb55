// Package logs reads the daily JSON log files written by dadcam.
//
// Last keeps only a bounded ring of lines in memory, so large log files can
// be inspected cheaply. Follow polls for appended lines until its context is
// cancelled and restarts from the top when the file is truncated or replaced.
package logs
