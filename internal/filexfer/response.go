package filexfer

import (
	"fmt"
	"os"

	"github.com/meshdesk/client/internal/wire"
)

// ApplyFileResponse applies one inbound FileResponse to the job it targets:
// a Digest sub-message runs the local pre-send comparison and replies with
// either a skip or an offset to resume from; a Block appends received bytes
// to the local file and advances Transferred; an Error fails and removes
// the job, per spec §7's "per-job errors reported via job_error, job is
// removed".
func (m *Manager) ApplyFileResponse(r *wire.FileResponse, sender Sender) error {
	job := m.jobByID(r.JobID)
	if job == nil {
		return fmt.Errorf("filexfer: file response for unknown job %d", r.JobID)
	}

	switch {
	case r.Error != "":
		m.mu.Lock()
		job.Status = StatusFailed
		job.Err = fmt.Errorf("filexfer: %s", r.Error)
		delete(m.ReadJobs, job.ID)
		delete(m.WriteJobs, job.ID)
		m.mu.Unlock()
		return sender.SendFileAction(job.ID, cancelAction{})

	case r.Digest != nil:
		result, err := CheckDigest(job.LocalPath, r.Digest.Size, r.Digest.Sum)
		if err != nil {
			return fmt.Errorf("filexfer: check digest for job %d: %w", job.ID, err)
		}
		switch result.Outcome {
		case IsSame:
			return sender.SendFileAction(job.ID, skipAction{fileNum: r.Digest.FileNum})
		case NoSuchFile:
			return sender.SendFileAction(job.ID, resumeAction{offset: 0})
		default: // NeedConfirm
			overwrite, decided := ResolveOverwrite(job, result)
			if !decided {
				m.mu.Lock()
				job.Status = StatusPaused
				m.mu.Unlock()
				return nil
			}
			if overwrite {
				return sender.SendFileAction(job.ID, resumeAction{offset: 0})
			}
			return sender.SendFileAction(job.ID, skipAction{fileNum: r.Digest.FileNum})
		}

	case r.Block != nil:
		f, err := os.OpenFile(job.LocalPath, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("filexfer: open %s for job %d: %w", job.LocalPath, job.ID, err)
		}
		defer f.Close()
		if _, err := f.WriteAt(r.Block.Data, r.Block.Offset); err != nil {
			return fmt.Errorf("filexfer: write block for job %d: %w", job.ID, err)
		}

		m.mu.Lock()
		job.Transferred = r.Block.Offset + int64(len(r.Block.Data))
		if job.TotalSize > 0 && job.Transferred >= job.TotalSize {
			job.Status = StatusCompleted
			delete(m.ReadJobs, job.ID)
			delete(m.WriteJobs, job.ID)
		}
		m.mu.Unlock()
	}
	return nil
}

type skipAction struct{ fileNum int32 }

func (a skipAction) ToWire(jobID int64) *wire.FileAction {
	return &wire.FileAction{JobID: jobID, Skip: &wire.FileActionSkip{FileNum: a.fileNum}}
}
