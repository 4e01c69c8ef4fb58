// Package command turns chat messages into directory operations.
//
// A message has the form "/name arg...". The Dispatcher looks the command up,
// checks the caller's capability against the permission store, validates the
// argument count, runs the operation and records the outcome in the audit sink.
// Callers without the capability get a fixed denial reply that includes their
// identity, so an operator can add it to the directory.
package command
