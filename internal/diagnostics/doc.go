// Package diagnostics reports on the machine and the planner's collaborators
// for the doctor command, and writes crash dumps when a long-running command
// panics.
package diagnostics
