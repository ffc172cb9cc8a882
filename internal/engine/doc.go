// Package engine drains deferred callbacks on the host goroutine. It runs
// queued tasks in FIFO order, optionally under a wall-clock budget, forwards
// every task failure to the host's error sink, and keeps going.
//
// Elapsed time is only sampled once every saturation window of executed
// tasks, so a budgeted drain may overrun its budget by up to window-1 tasks.
package engine
