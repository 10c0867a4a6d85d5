package filexfer

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckDigestNoSuchFile(t *testing.T) {
	result, err := CheckDigest(filepath.Join(t.TempDir(), "missing.txt"), 10, []byte("x"))
	if err != nil {
		t.Fatalf("CheckDigest: %v", err)
	}
	if result.Outcome != NoSuchFile {
		t.Fatalf("Outcome = %v, want NoSuchFile", result.Outcome)
	}
}

func TestCheckDigestIsSame(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	content := []byte("hello world")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sum := sha256.Sum256(content)

	result, err := CheckDigest(path, int64(len(content)), sum[:])
	if err != nil {
		t.Fatalf("CheckDigest: %v", err)
	}
	if result.Outcome != IsSame {
		t.Fatalf("Outcome = %v, want IsSame", result.Outcome)
	}
}

func TestCheckDigestNeedConfirmOnSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := CheckDigest(path, 99999, []byte("irrelevant"))
	if err != nil {
		t.Fatalf("CheckDigest: %v", err)
	}
	if result.Outcome != NeedConfirm {
		t.Fatalf("Outcome = %v, want NeedConfirm", result.Outcome)
	}
}

func TestCheckDigestNeedConfirmOnHashMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	content := []byte("hello world")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := CheckDigest(path, int64(len(content)), make([]byte, 32))
	if err != nil {
		t.Fatalf("CheckDigest: %v", err)
	}
	if result.Outcome != NeedConfirm {
		t.Fatalf("Outcome = %v, want NeedConfirm", result.Outcome)
	}
	if result.LocalSum == nil {
		t.Fatal("expected LocalSum to be populated on hash mismatch")
	}
}

func TestResolveOverwriteNoConfirmAlwaysOverwrites(t *testing.T) {
	job := &Job{NoConfirm: true}
	overwrite, decided := ResolveOverwrite(job, DigestCheckResult{Outcome: NeedConfirm})
	if !decided || !overwrite {
		t.Fatalf("expected decided+overwrite, got decided=%v overwrite=%v", decided, overwrite)
	}
}

func TestResolveOverwriteAsksUIWithoutPolicy(t *testing.T) {
	job := &Job{}
	_, decided := ResolveOverwrite(job, DigestCheckResult{Outcome: NeedConfirm})
	if decided {
		t.Fatal("expected decided=false so the caller asks the UI")
	}
}

func TestResolveOverwriteIsSameNeedsNoDecision(t *testing.T) {
	job := &Job{}
	overwrite, decided := ResolveOverwrite(job, DigestCheckResult{Outcome: IsSame})
	if !decided || overwrite {
		t.Fatalf("IsSame should decide 'skip' (overwrite=false), got overwrite=%v decided=%v", overwrite, decided)
	}
}

func TestSetNoConfirmAndSetConfirmOverrideFile(t *testing.T) {
	m := NewManager()
	sender := &fakeSender{}
	job, _ := m.SendFiles(Write, "/a", "/b", false, sender)

	if err := m.SetNoConfirm(job.ID); err != nil {
		t.Fatalf("SetNoConfirm: %v", err)
	}
	if !job.NoConfirm {
		t.Fatal("NoConfirm not set")
	}

	if err := m.SetConfirmOverrideFile(job.ID, true); err != nil {
		t.Fatalf("SetConfirmOverrideFile: %v", err)
	}
	if !job.ConfirmOverride {
		t.Fatal("ConfirmOverride not set")
	}
}
