package server

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handorbit/internal/logger"
)

// FrameFeed fans annotated loop frames out to MJPEG clients. It is attached
// to the detection loop as a display and never touches the camera itself.
type FrameFeed struct {
	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
}

// NewFrameFeed creates a feed with no clients.
func NewFrameFeed() *FrameFeed {
	return &FrameFeed{clients: make(map[int]chan []byte)}
}

// Wants reports whether any stream client is connected.
func (f *FrameFeed) Wants() bool {
	return f.Clients() > 0
}

// Show encodes frame as JPEG and offers it to every client. Frames are
// skipped when nobody is watching or a client is still busy with the
// previous one.
func (f *FrameFeed) Show(frame *gocv.Mat) bool {
	if f.Clients() == 0 {
		return true
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		logger.Debug("MJPEG", "Encode failed: %v", err)
		return true
	}
	data := bytes.Clone(buf.GetBytes())
	buf.Close()

	f.broadcast(data)
	return true
}

// Clients returns the number of connected stream clients.
func (f *FrameFeed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Subscribe adds a new client and returns a channel for receiving frames.
func (f *FrameFeed) Subscribe() (int, <-chan []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan []byte, 2)
	f.clients[id] = ch

	logger.Debug("MJPEG", "Client #%d subscribed (total clients: %d)", id, len(f.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (f *FrameFeed) Unsubscribe(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.clients[id]; ok {
		close(ch)
		delete(f.clients, id)
		logger.Debug("MJPEG", "Client #%d unsubscribed (remaining clients: %d)", id, len(f.clients))
	}
}

func (f *FrameFeed) broadcast(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.clients {
		select {
		case ch <- data:
		default:
		}
	}
}

// ServeHTTP streams MJPEG frames to the client until it disconnects.
func (f *FrameFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	id, frames := f.Subscribe()
	defer f.Unsubscribe(id)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		var data []byte
		select {
		case <-r.Context().Done():
			return
		case data = <-frames:
		case <-time.After(5 * time.Second):
			// No run is producing frames; keep waiting.
			continue
		}

		if err := writePart(w, data); err != nil {
			logger.Debug("MJPEG", "Client #%d disconnected: %v", id, err)
			return
		}
		flusher.Flush()
	}
}

func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
