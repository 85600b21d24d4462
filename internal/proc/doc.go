// Package proc launches and terminates the child processes the engine
// supervises.
//
// Full process-group termination is only guaranteed on Linux, where signals
// reach every member of the child's process group. On macOS the semantics are
// best effort, and on Windows Stop falls back to interrupting and, if needed,
// killing only the top-level process; grandchildren there may outlive the
// child and must be cleaned up separately.
package proc
