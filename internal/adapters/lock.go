package adapters

import (
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/nightlyone/lockfile"

	"github.com/RalfJung/opam/internal/paths"
)

// RootLock is the process-wide exclusive lock every write-path command
// holds for its whole duration. Readers do not take it.
type RootLock struct {
	lock lockfile.Lockfile
}

// AcquireRootLock takes the exclusive lock on the root directory. A
// second writer fails immediately rather than queueing.
func AcquireRootLock(root string) (*RootLock, error) {
	abs, err := filepath.Abs(paths.Lock(root))
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to resolve lock path").
			WithCause(err)
	}
	lock, err := lockfile.New(abs)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create lock").
			WithCause(err)
	}
	// TryLock lets the owning process take the lock again; refuse that
	// too so the lock stays exclusive within one process.
	if owner, ownerErr := lock.GetOwner(); ownerErr == nil && owner.Pid == os.Getpid() {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("this process already holds the lock on " + root)
	}
	if err := lock.TryLock(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("another opam process holds the lock on " + root).
			WithCause(err)
	}
	return &RootLock{lock: lock}, nil
}

// Release drops the lock. Safe to call from a defer on every exit path.
func (l *RootLock) Release() {
	if l == nil {
		return
	}
	_ = l.lock.Unlock()
}
