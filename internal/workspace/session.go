package workspace

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mvp-joe/declindex/internal/git"
)

// Session is one client searching the workspace on a git branch. Indexes
// are cached per branch, so sessions on the same branch share them.
type Session struct {
	ID      uuid.UUID
	Branch  string
	Started time.Time
}

// OpenSession starts a session on branch. An empty branch is recorded as
// git.Unknown.
func (w *Workspace) OpenSession(branch string) *Session {
	if branch == "" {
		branch = git.Unknown
	}
	sess := &Session{ID: uuid.New(), Branch: branch, Started: time.Now()}

	w.mu.Lock()
	w.sessions[sess.ID] = sess
	w.mu.Unlock()

	w.logger.Debug("opened session", "id", sess.ID, "branch", branch)
	return sess
}

// SessionForDir starts a session on the branch checked out in dir.
func (w *Workspace) SessionForDir(dir string) *Session {
	return w.OpenSession(w.git.GetCurrentBranch(dir))
}

// Session returns an open session.
func (w *Workspace) Session(id uuid.UUID) (*Session, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	sess, ok := w.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return sess, nil
}

// SwitchBranch moves a session to another branch and returns the updated
// session. Indexes of the old branch are dropped once no session uses it.
func (w *Workspace) SwitchBranch(id uuid.UUID, branch string) (*Session, error) {
	if branch == "" {
		branch = git.Unknown
	}

	w.mu.Lock()
	sess, ok := w.sessions[id]
	if !ok {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	previous := sess.Branch
	switched := &Session{ID: sess.ID, Branch: branch, Started: sess.Started}
	w.sessions[id] = switched
	release := previous != branch && !w.branchInUseLocked(previous)
	w.mu.Unlock()

	if release {
		w.manager.DropBranch(previous)
	}
	return switched, nil
}

// CloseSession ends a session. Indexes of its branch are dropped once no
// other session uses the branch.
func (w *Workspace) CloseSession(id uuid.UUID) error {
	w.mu.Lock()
	sess, ok := w.sessions[id]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	delete(w.sessions, id)
	release := !w.branchInUseLocked(sess.Branch)
	w.mu.Unlock()

	if release {
		w.manager.DropBranch(sess.Branch)
	}
	return nil
}

func (w *Workspace) branchInUseLocked(branch string) bool {
	for _, s := range w.sessions {
		if s.Branch == branch {
			return true
		}
	}
	return false
}
