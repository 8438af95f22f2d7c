// Package sandbox provisions one disposable, isolated environment for a
// package-manager tool and runs commands inside it.
//
// A Sandbox owns a unique root directory:
//
//	<root>/
//	  scratch/        working directory for commands
//	  env/            provisioned runtime (bin/, lib/pythonX.Y/site-packages, ...)
//	  candidate/      copy of the tool's source tree that gets installed
//	  tmp/            temp-capture directory, must be empty after each command
//	  pip-log.txt     the tool's log file
//
// The environment passed to commands is derived from the host with every
// tool-specific variable removed, so host configuration never leaks in.
// Close removes the whole root; a process-wide registry lets CloseAll tear
// down sandboxes that were never closed, for example on SIGINT.
package sandbox
