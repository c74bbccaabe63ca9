package batch

import (
	"errors"
	"testing"
)

func TestNewOK(t *testing.T) {
	r := NewOK("doc-1")
	if r.ID() != "doc-1" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Status() != StatusOK {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusOK)
	}
	if !r.OK() {
		t.Error("OK() = false, want true")
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
}

func TestNewError(t *testing.T) {
	err := errors.New("something failed")
	r := NewError("doc-2", err)
	if r.ID() != "doc-2" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusError)
	}
	if r.OK() {
		t.Error("OK() = true, want false")
	}
	if !errors.Is(r.Err(), err) {
		t.Errorf("Err() = %v, want %v", r.Err(), err)
	}
}

func TestReport_Add(t *testing.T) {
	var rep Report
	rep.Add(NewOK("a"))
	rep.Add(NewError("b", errors.New("rejected")))
	rep.Add(NewOK("c"))

	if rep.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", rep.Succeeded)
	}
	if rep.Failed != 1 {
		t.Errorf("Failed = %d, want 1", rep.Failed)
	}
	if rep.Submitted() != 3 {
		t.Errorf("Submitted() = %d, want 3", rep.Submitted())
	}
}

func TestReport_FirstError(t *testing.T) {
	var rep Report
	rep.Add(NewOK("a"))
	rep.Add(NewError("b", errors.New("mapper_parsing_exception")))
	rep.Add(NewError("c", errors.New("version_conflict")))

	first, ok := rep.FirstError()
	if !ok {
		t.Fatal("FirstError() found nothing")
	}
	if first.ID() != "b" {
		t.Errorf("FirstError().ID() = %q, want %q", first.ID(), "b")
	}
}

func TestReport_FirstError_AllOK(t *testing.T) {
	var rep Report
	rep.Add(NewOK("a"))

	if _, ok := rep.FirstError(); ok {
		t.Error("FirstError() = true, want false")
	}
}
