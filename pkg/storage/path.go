package storage

import "strings"

// MakePath derives the suggested blob URI for a new file instance:
//
//	<base>/<id[0:s]>/<id[s:2s]>/.../<rest>/<filename>
//
// with dimensions directory levels of splitLength characters each. The
// default layout (2 dimensions, split 2) places a file with id
// "deadbeef..." at <base>/de/ad/beef.../data.
func MakePath(base, id, filename string, dimensions, splitLength int) string {
	if dimensions <= 0 {
		dimensions = 1
	}
	if splitLength <= 0 {
		splitLength = 2
	}

	parts := make([]string, 0, dimensions+2)
	parts = append(parts, strings.TrimRight(base, "/"))
	rest := id
	for i := 0; i < dimensions && len(rest) > splitLength; i++ {
		parts = append(parts, rest[:splitLength])
		rest = rest[splitLength:]
	}
	parts = append(parts, rest, filename)

	return strings.Join(parts, "/")
}
