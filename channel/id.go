package channel

import (
	"fmt"
	"sync/atomic"
)

// ID is a process-unique channel identity, per spec.md §3's Channel
// identity field. It carries no ordering or addressing meaning beyond
// uniqueness within this process.
type ID uint64

func (id ID) String() string { return fmt.Sprintf("ch-%d", uint64(id)) }

var idCounter atomic.Uint64

// NewID allocates the next process-unique ID.
func NewID() ID { return ID(idCounter.Add(1)) }
