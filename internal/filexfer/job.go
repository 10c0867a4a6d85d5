// Package filexfer implements the file-transfer engine (C9): read and write
// job lists, digest-based overwrite detection, and progress reporting for a
// file-transfer session. It operates on the local filesystem side; the wire
// exchange of file blocks and digests flows through the Sender the session
// loop supplies.
package filexfer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/meshdesk/client/internal/wire"
)

// FileActionPayload converts a queued action into the wire.FileAction to
// send for jobID. SendFileAction implementations use this to stay agnostic
// of the specific action kind.
type FileActionPayload interface {
	ToWire(jobID int64) *wire.FileAction
}

// Direction distinguishes uploading local files to the peer (Read, since the
// engine reads them off local disk) from downloading peer files locally
// (Write).
type Direction int

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	if d == Read {
		return "read"
	}
	return "write"
}

// Status is a job's current lifecycle state.
type Status int

const (
	StatusQueued Status = iota
	StatusTransferring
	StatusPaused
	StatusCompleted
	StatusCancelled
	StatusFailed
)

// Job tracks one file (or directory entry) transfer in progress.
type Job struct {
	ID        int64
	Direction Direction
	LocalPath string
	RemotePath string
	IsDir     bool
	ShowHidden bool

	TotalSize   int64
	Transferred int64
	Speed       float64 // bytes/sec, updated by Tick
	Status      Status
	Err         error

	NoConfirm       bool
	ConfirmOverride bool // when NeedConfirm fires, overwrite without asking UI

	lastTransferred int64
	lastTick        time.Time
}

// Manager owns the two job lists and the remove-jobs map for one session.
// At most one job of a given id is active across ReadJobs and WriteJobs.
type Manager struct {
	mu         sync.Mutex
	nextID     int64
	ReadJobs   map[int64]*Job
	WriteJobs  map[int64]*Job
	RemoveJobs map[int64]*RemoveJob
}

// RemoveJob tracks an in-flight RemoveDirAll walking a remote directory tree.
type RemoveJob struct {
	ID       int64
	Path     string
	Pending  []string
	Done     bool
}

// NewManager creates an empty job manager.
func NewManager() *Manager {
	return &Manager{
		ReadJobs:   map[int64]*Job{},
		WriteJobs:  map[int64]*Job{},
		RemoveJobs: map[int64]*RemoveJob{},
	}
}

// Sender pushes file-transfer protocol actions to the peer over the session's
// transport. The session loop implements this; filexfer stays transport-agnostic.
type Sender interface {
	SendFileAction(jobID int64, action any) error
}

// AddJob registers a new job without starting any transfer; the caller
// (SendFiles or a peer-initiated request) fills in the fields and later
// calls ResumeJob to kick it off.
func (m *Manager) AddJob(dir Direction, localPath, remotePath string, isDir bool) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	job := &Job{
		ID:         m.nextID,
		Direction:  dir,
		LocalPath:  localPath,
		RemotePath: remotePath,
		IsDir:      isDir,
		Status:     StatusQueued,
	}
	if dir == Read {
		m.ReadJobs[job.ID] = job
	} else {
		m.WriteJobs[job.ID] = job
	}
	return job, nil
}

// SendFiles is the user-facing entry point: queue a job and immediately
// resume it (kick off block transfer) via sender.
func (m *Manager) SendFiles(dir Direction, localPath, remotePath string, isDir bool, sender Sender) (*Job, error) {
	job, err := m.AddJob(dir, localPath, remotePath, isDir)
	if err != nil {
		return nil, err
	}
	if err := m.ResumeJob(job.ID, sender); err != nil {
		return nil, err
	}
	return job, nil
}

// ResumeJob transitions a queued or paused job to transferring and notifies
// the peer side to continue (or start) sending/receiving blocks.
func (m *Manager) ResumeJob(jobID int64, sender Sender) error {
	job := m.jobByID(jobID)
	if job == nil {
		return fmt.Errorf("filexfer: no such job %d", jobID)
	}

	m.mu.Lock()
	job.Status = StatusTransferring
	job.lastTick = time.Now()
	job.lastTransferred = job.Transferred
	m.mu.Unlock()

	return sender.SendFileAction(jobID, resumeAction{offset: job.Transferred})
}

type resumeAction struct{ offset int64 }

func (a resumeAction) ToWire(jobID int64) *wire.FileAction {
	return &wire.FileAction{JobID: jobID, Resume: &wire.FileActionResume{Offset: a.offset}}
}

// CancelJob marks a job cancelled; the session loop observes the status on
// its next tick and stops servicing it.
func (m *Manager) CancelJob(jobID int64, sender Sender) error {
	m.mu.Lock()
	job := m.findLocked(jobID)
	if job == nil {
		m.mu.Unlock()
		return fmt.Errorf("filexfer: no such job %d", jobID)
	}
	job.Status = StatusCancelled
	m.mu.Unlock()

	return sender.SendFileAction(jobID, cancelAction{})
}

type cancelAction struct{}

func (cancelAction) ToWire(jobID int64) *wire.FileAction {
	return &wire.FileAction{JobID: jobID, Cancel: &wire.FileActionCancel{}}
}

func errNoSuchJob(id int64) error {
	return fmt.Errorf("filexfer: no such job %d", id)
}

func (m *Manager) jobByID(id int64) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(id)
}

func (m *Manager) findLocked(id int64) *Job {
	if j, ok := m.ReadJobs[id]; ok {
		return j
	}
	if j, ok := m.WriteJobs[id]; ok {
		return j
	}
	return nil
}

// ActiveReadJobs reports whether any read job is currently transferring,
// which drives the session's 1ms tick cadence.
func (m *Manager) ActiveReadJobs() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.ReadJobs {
		if j.Status == StatusTransferring {
			return true
		}
	}
	return false
}

// TickInterval returns the session tick cadence: 1ms while any read job is
// active so outbound blocks flow promptly, 30s otherwise for keepalive.
func (m *Manager) TickInterval() time.Duration {
	if m.ActiveReadJobs() {
		return time.Millisecond
	}
	return 30 * time.Second
}

// Progress is one job's speed-annotated snapshot, emitted on the 1s cadence.
type Progress struct {
	JobID       int64
	Transferred int64
	TotalSize   int64
	Speed       float64
	Status      Status
}

// Tick recomputes per-job speed for every job transferred since the last
// call and returns a progress snapshot for each active job. The caller
// invokes this roughly once per second of wall time.
func (m *Manager) Tick(now time.Time) []Progress {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Progress
	for _, jobs := range []map[int64]*Job{m.ReadJobs, m.WriteJobs} {
		for _, job := range jobs {
			if job.Status != StatusTransferring {
				continue
			}
			elapsed := now.Sub(job.lastTick).Seconds()
			if elapsed > 0 {
				job.Speed = float64(job.Transferred-job.lastTransferred) / elapsed
			}
			job.lastTransferred = job.Transferred
			job.lastTick = now
			out = append(out, Progress{
				JobID:       job.ID,
				Transferred: job.Transferred,
				TotalSize:   job.TotalSize,
				Speed:       job.Speed,
				Status:      job.Status,
			})
		}
	}
	return out
}

// RemoveFile deletes a single local file. Used for the write side of a
// peer-initiated delete on the browsing client's own machine.
func RemoveFile(path string) error {
	return os.Remove(path)
}

// RemoveDir removes an empty local directory.
func RemoveDir(path string) error {
	return os.Remove(path)
}

// CreateDir creates a local directory tree.
func CreateDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// RenameFile renames/moves a local file or directory.
func RenameFile(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// RemoveDirAll walks dir recursively and removes every entry, used to drive
// a RemoveJob's Pending list to completion one entry at a time so progress
// can be reported mid-walk.
func RemoveDirAll(m *Manager, dir string) (*RemoveJob, error) {
	var entries []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.nextID++
	job := &RemoveJob{ID: m.nextID, Path: dir, Pending: entries}
	m.RemoveJobs[job.ID] = job
	m.mu.Unlock()

	return job, nil
}

// StepRemoveJob removes the next pending entry in a RemoveJob, popping from
// the end of Pending. Each entry is removed once with os.RemoveAll, so a
// directory goes together with anything still inside it; nothing is
// retried. Once Pending is empty the job is marked done and dropped from
// RemoveJobs.
func StepRemoveJob(m *Manager, jobID int64) (done bool, err error) {
	m.mu.Lock()
	job, ok := m.RemoveJobs[jobID]
	if !ok {
		m.mu.Unlock()
		return false, fmt.Errorf("filexfer: no such remove job %d", jobID)
	}
	if len(job.Pending) == 0 {
		job.Done = true
		delete(m.RemoveJobs, jobID)
		m.mu.Unlock()
		return true, nil
	}
	next := job.Pending[len(job.Pending)-1]
	job.Pending = job.Pending[:len(job.Pending)-1]
	done = len(job.Pending) == 0
	if done {
		job.Done = true
		delete(m.RemoveJobs, jobID)
	}
	m.mu.Unlock()

	if err := os.RemoveAll(next); err != nil {
		return false, err
	}
	return done, nil
}
