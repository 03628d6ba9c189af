// Package logging provides opt-in file-based logging with rotation for smgrep.
// When the --debug flag is set, comprehensive logs are written under the
// shared base directory's logs/ subdirectory for debugging and troubleshooting.
//
// By default (without --debug), logging is minimal and goes to stderr only.
package logging
