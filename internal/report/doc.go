// Package report aggregates sort results into a markdown run report, writes it
// under the destination's reports directory, and retires old reports.
//
// Reports are named after the run's end time so filename order is run order;
// pruning and listing both rely on that.
package report
