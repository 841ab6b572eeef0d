// Package journal records every save attempt of a snapshot store in an
// append-only log next to its metadata.
//
// File layout:
//
//	[magic:8]
//	[len:4][crc32:4][type:1][json payload]   one frame per record
//	...
//
// len counts the crc, type and payload bytes. The crc covers type and
// payload. A frame cut short by a crash ends the readable log; Open
// truncates it away before appending.
//
// Metadata is only rewritten when a snapshot is retained, so the journal is
// what keeps the serial counter durable across discarded attempts.
package journal
