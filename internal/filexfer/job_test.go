package filexfer

import (
	"testing"
	"time"
)

type fakeSender struct {
	actions []any
}

func (f *fakeSender) SendFileAction(jobID int64, action any) error {
	f.actions = append(f.actions, action)
	return nil
}

func TestSendFilesCreatesTransferringJob(t *testing.T) {
	m := NewManager()
	sender := &fakeSender{}

	job, err := m.SendFiles(Read, "/local/a.txt", "/remote/a.txt", false, sender)
	if err != nil {
		t.Fatalf("SendFiles: %v", err)
	}
	if job.Status != StatusTransferring {
		t.Fatalf("Status = %v, want Transferring", job.Status)
	}
	if len(sender.actions) != 1 {
		t.Fatalf("expected 1 sent action, got %d", len(sender.actions))
	}
	if _, ok := m.ReadJobs[job.ID]; !ok {
		t.Fatal("job not registered in ReadJobs")
	}
}

func TestJobIDsDoNotCollideAcrossLists(t *testing.T) {
	m := NewManager()
	sender := &fakeSender{}

	readJob, _ := m.SendFiles(Read, "/a", "/b", false, sender)
	writeJob, _ := m.SendFiles(Write, "/c", "/d", false, sender)

	if readJob.ID == writeJob.ID {
		t.Fatal("read and write jobs got the same id")
	}
}

func TestCancelJobMarksCancelled(t *testing.T) {
	m := NewManager()
	sender := &fakeSender{}
	job, _ := m.SendFiles(Read, "/a", "/b", false, sender)

	if err := m.CancelJob(job.ID, sender); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if job.Status != StatusCancelled {
		t.Fatalf("Status = %v, want Cancelled", job.Status)
	}
}

func TestCancelJobUnknownIDErrors(t *testing.T) {
	m := NewManager()
	sender := &fakeSender{}
	if err := m.CancelJob(999, sender); err == nil {
		t.Fatal("expected error for unknown job id")
	}
}

func TestTickIntervalReflectsActiveReadJobs(t *testing.T) {
	m := NewManager()
	sender := &fakeSender{}

	if got := m.TickInterval(); got != 30*time.Second {
		t.Fatalf("TickInterval (idle) = %v, want 30s", got)
	}

	job, _ := m.SendFiles(Read, "/a", "/b", false, sender)
	if got := m.TickInterval(); got != time.Millisecond {
		t.Fatalf("TickInterval (active read) = %v, want 1ms", got)
	}

	m.mu.Lock()
	job.Status = StatusCompleted
	m.mu.Unlock()
	if got := m.TickInterval(); got != 30*time.Second {
		t.Fatalf("TickInterval (after completion) = %v, want 30s", got)
	}
}

func TestTickComputesSpeed(t *testing.T) {
	m := NewManager()
	sender := &fakeSender{}
	job, _ := m.SendFiles(Read, "/a", "/b", false, sender)
	job.TotalSize = 1000

	start := time.Now()
	job.lastTick = start
	job.Transferred = 500

	progress := m.Tick(start.Add(1 * time.Second))
	if len(progress) != 1 {
		t.Fatalf("expected 1 progress entry, got %d", len(progress))
	}
	if progress[0].Speed != 500 {
		t.Fatalf("Speed = %v, want 500", progress[0].Speed)
	}
}

func TestAtMostOneActiveJobPerID(t *testing.T) {
	m := NewManager()
	sender := &fakeSender{}
	job1, _ := m.SendFiles(Read, "/a", "/b", false, sender)
	job2, _ := m.SendFiles(Write, "/c", "/d", false, sender)

	if job1.ID == job2.ID {
		t.Fatal("expected distinct ids across read/write lists")
	}
	if m.jobByID(job1.ID) == nil || m.jobByID(job2.ID) == nil {
		t.Fatal("jobByID should find both jobs")
	}
}
