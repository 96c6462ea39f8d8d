package auth

import (
	"bufio"
	"os"
	"strings"
	"sync"
	"time"
)

// OperatorList reads the plain-text, one-name-per-line operator file
// described in spec.md §6. It caches the parsed set keyed by the file's
// mtime, per the "MAY cache with mtime invalidation" allowance in §5,
// rather than re-reading on every IsOperator call.
type OperatorList struct {
	path string

	mu      sync.Mutex
	names   map[string]bool
	modTime time.Time
}

// NewOperatorList creates a loader for the operator file at path. A
// missing file is treated as an empty operator set, not an error.
func NewOperatorList(path string) *OperatorList {
	return &OperatorList{path: path}
}

// IsOperator reports whether name appears in the operator file, reloading
// the cache if the file has changed on disk since the last check.
func (o *OperatorList) IsOperator(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.refreshLocked()
	return o.names[strings.ToLower(name)]
}

func (o *OperatorList) refreshLocked() {
	info, err := os.Stat(o.path)
	if err != nil {
		o.names = nil
		return
	}
	if o.names != nil && info.ModTime().Equal(o.modTime) {
		return
	}

	f, err := os.Open(o.path)
	if err != nil {
		o.names = nil
		return
	}
	defer f.Close()

	names := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		names[strings.ToLower(line)] = true
	}

	o.names = names
	o.modTime = info.ModTime()
}
