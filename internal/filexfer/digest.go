package filexfer

import (
	"crypto/sha256"
	"io"
	"os"

	"github.com/meshdesk/client/internal/wire"
)

// DigestOutcome is the result of comparing a peer-announced file digest
// against the local file before a transfer starts, letting both sides skip
// re-sending identical files.
type DigestOutcome int

const (
	// IsSame: local file matches the peer's digest exactly; reply "skip".
	IsSame DigestOutcome = iota
	// NeedConfirm: local file exists but differs; consult override policy or UI.
	NeedConfirm
	// NoSuchFile: no local file at that path; reply OffsetBlk(0).
	NoSuchFile
)

// DigestCheckResult is returned by CheckDigest.
type DigestCheckResult struct {
	Outcome   DigestOutcome
	LocalSize int64
	LocalSum  []byte // populated only for NeedConfirm, so the caller can log/compare
}

// CheckDigest compares a peer-announced digest (sha256 of the remote file)
// and size against localPath. A size mismatch returns NeedConfirm without
// hashing; the local file is hashed and compared only when the sizes match.
func CheckDigest(localPath string, peerSize int64, peerSum []byte) (DigestCheckResult, error) {
	f, err := os.Open(localPath)
	if os.IsNotExist(err) {
		return DigestCheckResult{Outcome: NoSuchFile}, nil
	}
	if err != nil {
		return DigestCheckResult{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return DigestCheckResult{}, err
	}

	if info.Size() != peerSize {
		return DigestCheckResult{Outcome: NeedConfirm, LocalSize: info.Size()}, nil
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return DigestCheckResult{}, err
	}
	sum := h.Sum(nil)

	if bytesEqual(sum, peerSum) {
		return DigestCheckResult{Outcome: IsSame, LocalSize: info.Size()}, nil
	}
	return DigestCheckResult{Outcome: NeedConfirm, LocalSize: info.Size(), LocalSum: sum}, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ResolveOverwrite applies a job's override policy to a NeedConfirm outcome
// without involving the UI: NoConfirm always overwrites, ConfirmOverride
// reflects a previously-recorded per-job choice. Returns false when the UI
// must still be asked.
func ResolveOverwrite(job *Job, result DigestCheckResult) (overwrite bool, decided bool) {
	if result.Outcome != NeedConfirm {
		return false, true
	}
	if job.NoConfirm {
		return true, true
	}
	if job.ConfirmOverride {
		return true, true
	}
	return false, false
}

// SetNoConfirm marks a job to always overwrite on NeedConfirm without asking.
func (m *Manager) SetNoConfirm(jobID int64) error {
	job := m.jobByID(jobID)
	if job == nil {
		return errNoSuchJob(jobID)
	}
	m.mu.Lock()
	job.NoConfirm = true
	m.mu.Unlock()
	return nil
}

// SetConfirmOverrideFile records the UI's answer to a NeedConfirm prompt for
// the job. ResolveOverwrite reuses only a true answer for later files in the
// job; after a false answer the UI is asked again.
func (m *Manager) SetConfirmOverrideFile(jobID int64, overwrite bool) error {
	job := m.jobByID(jobID)
	if job == nil {
		return errNoSuchJob(jobID)
	}
	m.mu.Lock()
	job.ConfirmOverride = overwrite
	m.mu.Unlock()
	return nil
}

// ConfirmDeleteFiles acknowledges a pending delete-confirmation prompt and
// forwards the decision to the peer side via sender.
func (m *Manager) ConfirmDeleteFiles(jobID int64, sender Sender) error {
	job := m.jobByID(jobID)
	if job == nil {
		return errNoSuchJob(jobID)
	}
	return sender.SendFileAction(jobID, confirmDeleteAction{})
}

type confirmDeleteAction struct{}

func (confirmDeleteAction) ToWire(jobID int64) *wire.FileAction {
	return &wire.FileAction{JobID: jobID, ConfirmDelete: &wire.FileActionConfirmDelete{}}
}
