// Package zigzag linearizes a 2D grid along alternating anti-diagonals,
// the traversal used by block-transform coders, and splits the result into
// fixed-size chunks.
//
// The walk starts at (0,0) heading down-left. Direction flips at the edges:
//
//   - heading down-left: on the last row step one column right, otherwise on
//     the first column step one row down
//   - heading up-right: on the last column step one row down, otherwise on
//     the first row step one column right
package zigzag

// DefaultChunkSize is the maximum chunk length.
const DefaultChunkSize = 128

// Order returns the row-major indices of a rows x cols grid in zigzag order.
// Every cell appears exactly once.
func Order(rows, cols int) []int {
	if rows <= 0 || cols <= 0 {
		return nil
	}

	out := make([]int, 0, rows*cols)
	row, col := 0, 0
	down := true
	for row < rows && col < cols {
		out = append(out, row*cols+col)
		if down {
			switch {
			case row == rows-1:
				col++
				down = false
			case col == 0:
				row++
				down = false
			default:
				row++
				col--
			}
		} else {
			switch {
			case col == cols-1:
				row++
				down = true
			case row == 0:
				col++
				down = true
			default:
				row--
				col++
			}
		}
	}
	return out
}

// Scan returns the values of a row-major rows x cols grid in zigzag order.
func Scan[T any](values []T, rows, cols int) []T {
	order := Order(rows, cols)
	out := make([]T, len(order))
	for i, idx := range order {
		out[i] = values[idx]
	}
	return out
}

// Chunk splits seq into consecutive slices of at most size elements.
// The last chunk may be shorter; nothing is padded. The chunks alias seq.
func Chunk[T any](seq []T, size int) [][]T {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]T, 0, (len(seq)+size-1)/size)
	for i := 0; i < len(seq); i += size {
		chunks = append(chunks, seq[i:min(i+size, len(seq))])
	}
	return chunks
}

// Flatten concatenates chunks in order.
func Flatten[T any](chunks [][]T) []T {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]T, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// Serialize scans values in zigzag order, batches the sequence into chunks
// of chunkSize and returns their concatenation.
func Serialize[T any](values []T, rows, cols, chunkSize int) []T {
	return Flatten(Chunk(Scan(values, rows, cols), chunkSize))
}
