// Package transcripts loads transcription output into domain transcripts.
// Each sub-package parses one file format; the Loader picks the format by
// file extension and content.
package transcripts
