// Package cli parses the nxsplit command line, merges it with an optional
// configuration file, and maps usage problems to exit codes.
package cli
