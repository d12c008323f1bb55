// Package device handles removable storage: identifying a partition by
// filesystem UUID and hardware serial, mounting it through udisks for the
// length of a run, and watching udev for new partitions.
package device
