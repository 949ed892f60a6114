// Package libscan implements QR scanning sessions for a library circulation
// desk: camera lifecycle, a frame-sampling decode loop, and the payload
// conventions used by the dashboard that consumes the scans.
package libscan

import (
	"fmt"
	"image"
	"image/draw"
	"log"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/soumya-jain123/libscan-go/camera"
	"github.com/soumya-jain123/libscan-go/decode"
)

// State is the lifecycle state of a Scanner. A Scanner is in exactly one
// state at a time, and whether a tick schedules another tick follows from
// the state alone.
type State int

const (
	// StateIdle means no session is active. Initial state, and the state
	// after Close.
	StateIdle State = iota

	// StateInitializing means camera access has been requested but the
	// stream is not attached yet.
	StateInitializing

	// StateScanning means the stream is attached and the sampling loop is
	// running.
	StateScanning

	// StateResult means a decode succeeded. The camera stays attached
	// until Close or Rescan.
	StateResult

	// StateError means the camera was unavailable or failed. Terminal for
	// the session; escape via Rescan or Close.
	StateError
)

// String returns the state name.
func (st State) String() string {
	switch st {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateScanning:
		return "scanning"
	case StateResult:
		return "result"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(st))
}

// OpenFunc acquires a camera source matching the constraints. The backends
// under camera/ provide implementations; tests inject fakes.
type OpenFunc func(camera.Constraints) (camera.Source, error)

// Opts are options for a Scanner.
type Opts struct {
	DeviceID string        // Explicit camera device. If empty, pick by Facing.
	Facing   camera.Facing // Preferred sensor direction.
	Interval time.Duration // How often the camera backend samples a frame.

	// Confirmations is how many consecutive ticks must decode the same
	// payload before it is reported. Zero means 1: report the first
	// decode.
	Confirmations int

	// Timeout, when non-zero, moves the session to StateError if no code
	// was decoded within this duration after the stream attached. Zero
	// means scan until success or Close.
	Timeout time.Duration

	Verbose bool // Print verbose logging.
}

// Scanner manages one scanning session at a time: it acquires a camera
// source, samples frames until a code decodes, and reports the payload to
// the callback given to Open, at most once per session.
type Scanner struct {
	open   OpenFunc
	decode decode.Func
	opts   Opts

	mu       sync.Mutex
	state    State
	session  *session
	onResult func(payload string)
	result   string
	lastErr  error
}

// session is one open-to-close scan attempt. The camera source is owned by
// the session and closed exactly once, on release.
type session struct {
	id      uuid.UUID
	stop    chan struct{}
	confirm *Confirmer

	mu       sync.Mutex
	src      camera.Source
	frames   chan camera.Frame
	released bool

	buf *image.NRGBA // Reused frame buffer. Sampling loop goroutine only.
}

// attach hands the acquired source to the session. It reports false if the
// session was released while the camera was being acquired; the caller then
// still owns the source and must close it.
func (ss *session) attach(src camera.Source) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.released {
		return false
	}
	ss.src = src
	ss.frames = src.Frames()
	return true
}

// release stops the sampling loop and closes the camera source. Safe to
// call any number of times; the source is closed exactly once.
func (ss *session) release() {
	ss.mu.Lock()
	if ss.released {
		ss.mu.Unlock()
		return
	}
	ss.released = true
	src := ss.src
	ss.src = nil
	close(ss.stop)
	ss.mu.Unlock()
	if src != nil {
		src.Close()
	}
}

// Frames larger than this are downscaled before decoding. QR finder
// patterns survive the shrink and the decoder runs much faster.
const maxDecodeDim = 800

// sample copies the frame into the session's reusable buffer, downscaling
// first when the camera resolution is larger than the decoder needs. The
// buffer is fully overwritten on every tick.
func (ss *session) sample(img image.Image) image.Image {
	size := img.Bounds().Size()
	if size.X > maxDecodeDim || size.Y > maxDecodeDim {
		img = imaging.Fit(img, maxDecodeDim, maxDecodeDim, imaging.NearestNeighbor)
	}
	r := image.Rectangle{Max: img.Bounds().Size()}
	if ss.buf == nil || ss.buf.Bounds() != r {
		ss.buf = image.NewNRGBA(r)
	}
	draw.Draw(ss.buf, r, img, img.Bounds().Min, draw.Src)
	return ss.buf
}

// New returns a Scanner that acquires cameras with open and decodes frames
// with dec. Both must be non-nil.
func New(open OpenFunc, dec decode.Func, opts *Opts) (*Scanner, error) {
	if open == nil {
		return nil, fmt.Errorf("camera open function must not be nil")
	}
	if dec == nil {
		return nil, fmt.Errorf("decode function must not be nil")
	}
	s := &Scanner{open: open, decode: dec}
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.Confirmations <= 0 {
		s.opts.Confirmations = 1
	}
	return s, nil
}

// Open begins a session: it requests camera access and starts the sampling
// loop once the stream is attached. onResult is invoked with the decoded
// payload, at most once per session and never after Close.
//
// Open returns an error only when a session is already active. Camera
// acquisition failures do not crash or return here; they surface as
// StateError with the reason in Err.
func (s *Scanner) Open(onResult func(payload string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("session already active (state %s)", s.state)
	}
	sess := s.newSession()
	s.session = sess
	s.onResult = onResult
	s.result = ""
	s.lastErr = nil
	s.state = StateInitializing
	go s.acquire(sess)
	return nil
}

// Close ends the session: it stops the sampling loop, releases the camera,
// and discards any pending result or error. Idempotent and safe to call
// from any state. If a decode completes concurrently with Close, Close wins
// and the result is discarded.
func (s *Scanner) Close() {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.onResult = nil
	s.result = ""
	s.lastErr = nil
	s.state = StateIdle
	s.mu.Unlock()
	if sess != nil {
		sess.release()
	}
}

// Rescan discards the previous result or error and starts a new scan
// attempt with the callback given to Open. Valid only from StateResult or
// StateError; from any other state it is a no-op.
func (s *Scanner) Rescan() {
	s.mu.Lock()
	if s.state != StateResult && s.state != StateError {
		s.mu.Unlock()
		return
	}
	prev := s.session
	sess := s.newSession()
	s.session = sess
	s.result = ""
	s.lastErr = nil
	s.state = StateInitializing
	s.mu.Unlock()
	if prev != nil {
		prev.release()
	}
	go s.acquire(sess)
}

// State returns the current lifecycle state.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the decoded payload, or "" outside StateResult.
func (s *Scanner) Result() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err returns why the session failed, or nil outside StateError.
func (s *Scanner) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SessionID returns the ID of the active session, or uuid.Nil when idle.
func (s *Scanner) SessionID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return uuid.Nil
	}
	return s.session.id
}

func (s *Scanner) newSession() *session {
	confirm, _ := NewConfirmer(s.opts.Confirmations)
	return &session{
		id:      uuid.New(),
		stop:    make(chan struct{}),
		confirm: confirm,
	}
}

func (s *Scanner) constraints() camera.Constraints {
	return camera.Constraints{
		DeviceID: s.opts.DeviceID,
		Facing:   s.opts.Facing,
		Interval: s.opts.Interval,
		Verbose:  s.opts.Verbose,
	}
}

// acquire requests camera access for sess and, once granted, starts the
// sampling loop. Runs in its own goroutine; the caller may Close or Rescan
// at any point while acquisition is in flight.
func (s *Scanner) acquire(sess *session) {
	src, err := s.open(s.constraints())
	if err != nil {
		if s.opts.Verbose {
			log.Printf("scanner %s: opening camera: %v", sess.id, err)
		}
		s.mu.Lock()
		if s.session == sess {
			s.state = StateError
			s.lastErr = fmt.Errorf("opening camera: %v", err)
		}
		s.mu.Unlock()
		return
	}
	if !sess.attach(src) {
		// Session was closed while the camera was being acquired.
		src.Close()
		return
	}
	s.mu.Lock()
	if s.session != sess {
		s.mu.Unlock()
		sess.release()
		return
	}
	s.state = StateScanning
	s.mu.Unlock()
	if s.opts.Verbose {
		log.Printf("scanner %s: stream attached, sampling", sess.id)
	}
	go s.loop(sess)
}

// loop is the sampling loop: one decode attempt per frame received from the
// source. It stops on the first reported payload, on session release, on a
// stream error, or on the configured timeout.
func (s *Scanner) loop(sess *session) {
	var timeout <-chan time.Time
	if s.opts.Timeout > 0 {
		t := time.NewTimer(s.opts.Timeout)
		defer t.Stop()
		timeout = t.C
	}
	for {
		select {
		case <-sess.stop:
			return
		case <-timeout:
			s.fail(sess, fmt.Errorf("no code found within %v", s.opts.Timeout))
			return
		case f, ok := <-sess.frames:
			if !ok {
				s.fail(sess, fmt.Errorf("camera stream ended"))
				return
			}
			if f.Err != nil {
				s.fail(sess, fmt.Errorf("reading camera: %v", f.Err))
				return
			}
			payload, err := s.decode(sess.sample(f.Image))
			if err != nil {
				// Routine miss, sample the next frame.
				continue
			}
			confirmed, err := sess.confirm.Add(payload)
			if err != nil || !confirmed {
				continue
			}
			s.report(sess, payload)
			return
		}
	}
}

// fail releases the session's camera and moves the scanner to StateError,
// unless Close or Rescan already detached the session.
func (s *Scanner) fail(sess *session, err error) {
	if s.opts.Verbose {
		log.Printf("scanner %s: %v", sess.id, err)
	}
	sess.release()
	s.mu.Lock()
	if s.session == sess {
		s.state = StateError
		s.lastErr = err
	}
	s.mu.Unlock()
}

// report commits the decoded payload. The commit happens under the scanner
// lock: if Close or Rescan detached the session first, the result is
// discarded and the callback does not fire. The camera stays attached in
// StateResult.
func (s *Scanner) report(sess *session, payload string) {
	s.mu.Lock()
	if s.session != sess {
		s.mu.Unlock()
		return
	}
	s.state = StateResult
	s.result = payload
	cb := s.onResult
	s.mu.Unlock()
	if s.opts.Verbose {
		log.Printf("scanner %s: decoded %q", sess.id, payload)
	}
	if cb != nil {
		cb(payload)
	}
}
