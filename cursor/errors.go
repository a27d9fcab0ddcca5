package cursor

import "errors"

// ErrCantMove reports that the cursor cannot move past the first or
// last cell of the B-Tree. Rewind returns it for an empty tree; Next
// and Prev convert it into a plain (false, nil) result.
var ErrCantMove = errors.New("cursor: can't move further in that direction")
