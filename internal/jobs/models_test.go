package jobs

import "testing"

func TestSetProgressMonotonic(t *testing.T) {
	job := &Job{Status: StatusProcessing}
	job.SetProgress(30, "launched")
	job.SetProgress(20, "stale update")
	if job.Progress != 30 {
		t.Errorf("progress moved backwards: %d", job.Progress)
	}
	job.SetProgress(150, "overshoot")
	if job.Progress != 100 {
		t.Errorf("progress should cap at 100, got %d", job.Progress)
	}
}

func TestSetFailedFreezesProgress(t *testing.T) {
	job := &Job{Status: StatusProcessing}
	job.SetProgress(30, "launched")
	job.SetFailed("tool crashed")
	if job.Progress != 30 {
		t.Errorf("failure should keep progress at failure point, got %d", job.Progress)
	}
	if job.Status != StatusFailed {
		t.Errorf("unexpected status %s", job.Status)
	}

	job.SetProgress(90, "late update")
	if job.Progress != 30 {
		t.Errorf("terminal job accepted progress update: %d", job.Progress)
	}
	job.SetCompleted("/output/x.stl")
	if job.Status != StatusFailed {
		t.Errorf("terminal status changed: %s", job.Status)
	}
}

func TestSetCompleted(t *testing.T) {
	job := &Job{Status: StatusProcessing, Progress: 90}
	job.SetCompleted("/output/x.stl")
	if job.Status != StatusCompleted || job.Progress != 100 {
		t.Errorf("unexpected terminal state %s/%d", job.Status, job.Progress)
	}
	if job.OutputFile != "/output/x.stl" {
		t.Errorf("output file not set: %q", job.OutputFile)
	}
}

func TestParseStatus(t *testing.T) {
	if status, err := ParseStatus(" Completed "); err != nil || status != StatusCompleted {
		t.Errorf("ParseStatus(Completed) = %s, %v", status, err)
	}
	if _, err := ParseStatus("bogus"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestIsTerminal(t *testing.T) {
	for status, want := range map[Status]bool{
		StatusPending:    false,
		StatusProcessing: false,
		StatusCompleted:  true,
		StatusFailed:     true,
	} {
		if status.IsTerminal() != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, !want, want)
		}
	}
}
