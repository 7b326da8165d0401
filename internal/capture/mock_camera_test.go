package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestMockCamera_Playback(t *testing.T) {
	// Create test frames
	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame1, &frame2}, false)

	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	// Read both frames
	f1, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	f1.Close()

	f2, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	f2.Close()

	// Third read should fail (no loop)
	_, err = cam.ReadFrame()
	if !errors.Is(err, ErrNoMoreFrames) {
		t.Errorf("ReadFrame() error = %v, want ErrNoMoreFrames", err)
	}
}

func TestMockCamera_Loop(t *testing.T) {
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	cam.Open()
	defer cam.Close()

	// Should loop indefinitely
	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() iteration %d error = %v", i, err)
		}
		f.Close()
	}
}

func TestMockCamera_NotOpen(t *testing.T) {
	cam := NewMockCamera(nil, false)

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestMockCamera_OpenError(t *testing.T) {
	cam := NewMockCamera(nil, false)
	openErr := errors.New("device busy")
	cam.SetOpenError(openErr)

	if err := cam.Open(); !errors.Is(err, openErr) {
		t.Errorf("Open() error = %v, want %v", err, openErr)
	}
	if cam.IsOpen() {
		t.Error("camera should not be open after failed Open")
	}
	if cam.Opens() != 0 {
		t.Errorf("Opens() = %d, want 0", cam.Opens())
	}
}

func TestMockCamera_Counters(t *testing.T) {
	frame := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	cam.Open()
	for i := 0; i < 3; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() error = %v", err)
		}
		f.Close()
	}
	cam.Close()

	if cam.Opens() != 1 || cam.Closes() != 1 || cam.Reads() != 3 {
		t.Errorf("opens=%d closes=%d reads=%d, want 1/1/3", cam.Opens(), cam.Closes(), cam.Reads())
	}

	var _ Camera = cam
}
