// Package transcode converts between raw bytes and standard base64 text.
//
// Encoding works through the input in [ChunkSize] pieces so that tens-of-megabytes buffers never go through
// one oversized call. ChunkSize is a multiple of 3, so every chunk except the last encodes without padding
// and chunk outputs concatenate into exactly the encoding of the whole buffer.
//
// [LooksLikeBase64] is the cheap sniffing heuristic the downloader uses to decide whether an ambiguous text
// payload is worth decoding at all.
package transcode
