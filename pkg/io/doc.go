// Package io reads and writes catbits output artifacts.
//
// # Overview
//
// An artifact is a flat binary file of packed bits. Each processed image
// appends its complete byte buffer with one write call, so the file always
// ends on an image boundary:
//
//	random_sequence.bin = bytes(image 1) || bytes(image 2) || ...
//
// There is no header, framing or padding between images. A 1024x1024 source
// with the default 4x4 blocks contributes 256*256 bits = 8192 bytes.
//
// # Lifecycle
//
// A batch calls [File.Reset] once before the first image, truncating any
// previous contents, then [File.Append] once per image. Append opens the
// file in append mode, writes, syncs and closes it again. If the write
// fails part way, the file is truncated back to its previous length so a
// failed image never leaves a partial buffer behind.
//
// # Reading
//
// [ReadFile] loads an artifact for analysis. [Buffer] is an in-memory sink
// with the same contract, used by the HTTP server and by tests.
package io
