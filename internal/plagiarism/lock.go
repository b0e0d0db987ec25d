package plagiarism

import (
	"context"
	"sync"
)

// LocalLocker is an in-process VersionLocker keyed by document version.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*versionLock
}

type versionLock struct {
	held chan struct{}
	refs int
}

// NewLocalLocker creates a keyed mutex for a single process.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*versionLock)}
}

// Lock blocks until the version is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, documentVersionID string) (func(), error) {
	l.mu.Lock()
	vl, ok := l.locks[documentVersionID]
	if !ok {
		vl = &versionLock{held: make(chan struct{}, 1)}
		l.locks[documentVersionID] = vl
	}
	vl.refs++
	l.mu.Unlock()

	select {
	case vl.held <- struct{}{}:
	case <-ctx.Done():
		l.release(documentVersionID, vl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-vl.held
			l.release(documentVersionID, vl)
		})
	}, nil
}

func (l *LocalLocker) release(documentVersionID string, vl *versionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	vl.refs--
	if vl.refs == 0 {
		delete(l.locks, documentVersionID)
	}
}
