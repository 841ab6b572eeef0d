// Package serializer provides the file formats a snapshot store can write.
//
// A Serializer encodes a string-keyed map to a stream and back, and names the
// file extension it owns. JSON is the default. YAML is human editable,
// MessagePack is the compact binary alternate, and Sealed wraps any of them
// in authenticated encryption.
//
// SaveFile writes atomically: data goes to a temporary file in the target
// directory, which is synced and renamed over the destination.
package serializer
