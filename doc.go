// Package main provides the entry point of adopsbot.
// It runs the back end of a chat bot that executes Active Directory
// administration commands for operators. Which operator may run which command
// is synchronized periodically from directory group membership, and every
// command is recorded in an audit trail.
package main
