package process

import (
	"testing"

	"github.com/pkg/errors"
)

func newTestSystem() (*System, *fakeBackend) {
	zero := newFakeProc(0, "game.exe")

	denied := newFakeProc(4, "game.exe")
	denied.openErr = ErrAccessDenied

	garbled := newFakeProc(6, "")
	garbled.name = []byte{0xff, 0xfe, 0}

	b := newFakeBackend(
		zero,
		denied,
		garbled,
		newFakeProc(8, "Game.EXE"),
		newFakeProc(12, "game.exe"),
		newFakeProc(16, "other.exe"),
	)
	return NewSystem(b), b
}

func TestSystem_Find(t *testing.T) {
	s, b := newTestSystem()

	p, err := s.Find("GAME.exe")
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if p.PID != 8 {
		t.Fatalf("expected pid 8 - got %d", p.PID)
	}
	if p.PID != p.Handle.PID() {
		t.Fatalf("expected handle pid %d - got %d", p.PID, p.Handle.PID())
	}
	if p.Name != "game.exe" {
		t.Fatalf("expected name %q - got %q", "game.exe", p.Name)
	}

	if open := b.openCount(); open != 1 {
		t.Fatalf("expected only the returned handle to be open - got %d open", open)
	}
}

func TestSystem_FindAll(t *testing.T) {
	s, b := newTestSystem()

	procs, err := s.FindAll("game.exe")
	if err != nil {
		t.Fatal(err)
	}

	if len(procs) != 2 || procs[0].PID != 8 || procs[1].PID != 12 {
		t.Fatalf("expected pids 8 and 12 - got %+v", procs)
	}
	if open := b.openCount(); open != 2 {
		t.Fatalf("expected 2 open handles - got %d", open)
	}

	for _, p := range procs {
		p.Close()
	}
	if open := b.openCount(); open != 0 {
		t.Fatalf("expected no open handles - got %d", open)
	}
}

func TestSystem_Find_EmptyName(t *testing.T) {
	s, b := newTestSystem()

	_, err := s.Find("")
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected %v - got %v", ErrEmptyInput, err)
	}
	if !errors.Is(err, ErrProcessNotFound) {
		t.Fatalf("expected error to match %v - got %v", ErrProcessNotFound, err)
	}
	if b.enumerated != 0 {
		t.Fatalf("expected no enumeration - got %d", b.enumerated)
	}
}

func TestSystem_Find_NotFound(t *testing.T) {
	s, b := newTestSystem()

	_, err := s.Find("missing.exe")
	if !errors.Is(err, ErrProcessNotFound) {
		t.Fatalf("expected %v - got %v", ErrProcessNotFound, err)
	}
	if open := b.openCount(); open != 0 {
		t.Fatalf("expected every candidate to be closed - got %d open", open)
	}
}

func TestSystem_Find_SkipsZeroAndUnopenable(t *testing.T) {
	denied := newFakeProc(4, "locked.exe")
	denied.openErr = ErrAccessDenied

	s := NewSystem(newFakeBackend(newFakeProc(0, "idle"), denied))

	for _, name := range []string{"idle", "locked.exe"} {
		_, err := s.Find(name)
		if !errors.Is(err, ErrProcessNotFound) {
			t.Fatalf("%s: expected %v - got %v", name, ErrProcessNotFound, err)
		}
	}
}

func TestSystem_Open(t *testing.T) {
	s, _ := newTestSystem()

	_, err := s.Open(4)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected %v - got %v", ErrAccessDenied, err)
	}

	_, err = s.Open(1234)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected %v - got %v", ErrNotFound, err)
	}

	h, err := s.Open(16)
	if err != nil {
		t.Fatal(err)
	}
	if h.PID() != 16 {
		t.Fatalf("expected pid 16 - got %d", h.PID())
	}
	h.Close()
}

func TestSystem_With(t *testing.T) {
	s, b := newTestSystem()

	var kept *Process
	err := s.With("other.exe", func(p *Process) error {
		kept = p
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if open := b.openCount(); open != 0 {
		t.Fatalf("expected handle to be closed - got %d open", open)
	}

	_, err = kept.Modules()
	if !errors.Is(err, ErrHandleClosed) {
		t.Fatalf("expected %v - got %v", ErrHandleClosed, err)
	}
}

func TestSystem_With_ClosesOnError(t *testing.T) {
	s, b := newTestSystem()

	exp := errors.New("callback failed")
	err := s.With("other.exe", func(*Process) error {
		return exp
	})
	if err != exp {
		t.Fatalf("expected %v - got %v", exp, err)
	}
	if open := b.openCount(); open != 0 {
		t.Fatalf("expected handle to be closed - got %d open", open)
	}
}

func TestHandle_Close(t *testing.T) {
	h := openFake(newFakeProc(1, "a"))

	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op - got %v", err)
	}

	_, err := h.ReadMemory(0x1000, 4)
	if !errors.Is(err, ErrHandleClosed) {
		t.Fatalf("expected %v - got %v", ErrHandleClosed, err)
	}
	_, err = h.PointerSize()
	if !errors.Is(err, ErrHandleClosed) {
		t.Fatalf("expected %v - got %v", ErrHandleClosed, err)
	}
}

func TestHandle_ConcurrentClose(t *testing.T) {
	p := newFakeProc(1, "a")
	p.mapSegment(0x1000, 0x1000, RegionCommitted)
	h := openFake(p)

	done := make(chan error)
	for i := 0; i < 8; i++ {
		go func() {
			var err error
			for j := 0; j < 100 && err == nil; j++ {
				_, err = h.ReadMemory(0x1000, 0x100)
			}
			done <- err
		}()
	}

	h.Close()

	for i := 0; i < 8; i++ {
		err := <-done
		if err != nil && !errors.Is(err, ErrHandleClosed) {
			t.Fatalf("expected nil or %v - got %v", ErrHandleClosed, err)
		}
	}
}
