// Command dadcam ingests camera-trap cards: it scans a directory or a mounted
// device, runs object detection over every photo and clip, moves each file
// into detections/ or no_detections/ under the destination, and writes a
// markdown run report.
//
// Exit status is 0 for a clean run, 2 when some files failed, and 1 when the
// run could not proceed.
package main
