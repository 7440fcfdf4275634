package platelog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// State is the step a capture session is at.
type State int

const (
	// Idle is the initial state: nothing captured yet.
	Idle State = iota
	// Capturing means an image source is open and waiting for a frame or file.
	Capturing
	// Captured means the image is available but not analyzed.
	Captured
	// Analyzing means the image was sent to the analyzer.
	Analyzing
	// Adjustable means the candidate meal exists and its portion can be edited.
	Adjustable
	// Committed is the outcome of a saved candidate.
	Committed
	// Discarded is the outcome of a cancelled capture.
	Discarded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Captured:
		return "captured"
	case Analyzing:
		return "analyzing"
	case Adjustable:
		return "adjustable"
	case Committed:
		return "committed"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// resting reports whether a new capture may start from s.
func (s State) resting() bool { return s == Idle || s == Committed || s == Discarded }

// CaptureSession owns the lifecycle of one meal entry at a time: image
// acquisition, analysis, portion adjustment, and finally commit or discard.
//
// All methods are safe for concurrent use. Analyze does not hold the session
// while the analyzer runs, so Discard can be called meanwhile; the late
// analysis response is then dropped. Commit does not hold it while the
// ledger saves either, but the entry cannot be edited or discarded until the
// ledger answers.
type CaptureSession struct {
	analyzer Analyzer
	user     UserID
	// Logger receives the session's structured logs; nil means slog.Default().
	Logger *slog.Logger

	mu         sync.Mutex
	state      State
	generation uint64 // incremented each time the session leaves the current entry
	source     Source
	acquiring  bool
	committing bool
	image      []byte
	candidate  CandidateMeal
	lastErr    error
}

// NewCaptureSession returns an idle session analyzing images for user.
func NewCaptureSession(analyzer Analyzer, user UserID) *CaptureSession {
	return &CaptureSession{analyzer: analyzer, user: user}
}

func (s *CaptureSession) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// State returns the current state.
func (s *CaptureSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Image returns a copy of the captured image, nil before capture.
func (s *CaptureSession) Image() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.image)
}

// Candidate returns the candidate meal. It is only available in the Adjustable state.
func (s *CaptureSession) Candidate() (CandidateMeal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Adjustable {
		return CandidateMeal{}, false
	}
	c := s.candidate
	c.Image = slices.Clone(c.Image)
	return c, true
}

// LastError returns the error of the last failed analysis of the current
// entry, so that a UI can explain why the session is back to Captured.
func (s *CaptureSession) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *CaptureSession) invalid(op string) error {
	if s.committing {
		return fmt.Errorf("%w: cannot %s while committing", ErrInvalidState, op)
	}
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidState, op, s.state)
}

// transition moves to 'to' and logs it. s.mu must be held.
func (s *CaptureSession) transition(to State) {
	s.logger().Debug("capture session", "user", s.user, "from", s.state.String(), "to", to.String(), "generation", s.generation)
	s.state = to
}

// release closes the capture source, if any. s.mu must be held.
func (s *CaptureSession) release() error {
	if s.source == nil {
		return nil
	}
	src := s.source
	s.source = nil
	if err := src.Close(); err != nil {
		s.logger().Warn("failed to release capture source", "user", s.user, "error", err)
		return fmt.Errorf("release capture source: %w", err)
	}
	return nil
}

// Start begins a new entry by taking ownership of src, an opened image source.
//
// A session runs one entry at a time: starting while an entry is in progress
// is an ErrInvalidState and leaves the current entry untouched. src is
// released in that case, since the session did not take it.
func (s *CaptureSession) Start(src Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.resting() {
		err := s.invalid("start a capture")
		return errors.Join(err, src.Close())
	}
	s.generation++
	s.source = src
	s.image = nil
	s.candidate = CandidateMeal{}
	s.lastErr = nil
	s.transition(Capturing)
	return nil
}

// Capture acquires the image from the source. The session is not held
// while the source blocks, so the entry can be discarded meanwhile: closing
// the source is expected to unblock Acquire.
//
// If the source fails, it is released and the session goes back to Idle.
func (s *CaptureSession) Capture(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Capturing || s.acquiring {
		defer s.mu.Unlock()
		return s.invalid("capture")
	}
	s.acquiring = true
	gen, src := s.generation, s.source
	s.mu.Unlock()

	image, err := src.Acquire(ctx)
	if err == nil && len(image) == 0 {
		err = errors.New("empty image")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquiring = false
	if s.generation != gen || s.state != Capturing {
		return fmt.Errorf("%w: capture abandoned, session is %s", ErrInvalidState, s.state)
	}
	if err != nil {
		s.transition(Idle)
		return errors.Join(fmt.Errorf("acquire image: %w", err), s.release())
	}
	s.image = image
	s.transition(Captured)
	return nil
}

// Analyze sends the captured image to the analyzer and, on success, builds
// the candidate meal at the baseline portion.
//
// On failure the session goes back to Captured with its image, so that the
// analysis can be retried without capturing again; the error wraps
// ErrAnalysis. If the entry was discarded while the analyzer was running, the
// response is dropped and the error wraps ErrStaleAnalysis. If the capture
// source cannot be released, that error is returned before analyzing and the
// session stays Captured.
func (s *CaptureSession) Analyze(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Captured || len(s.image) == 0 {
		defer s.mu.Unlock()
		return s.invalid("analyze")
	}
	// the source is not needed anymore: a failed analysis retries with the same image.
	// It is dropped even if closing it fails, so calling Analyze again proceeds.
	if err := s.release(); err != nil {
		s.mu.Unlock()
		return err
	}
	gen, image := s.generation, s.image
	s.transition(Analyzing)
	s.mu.Unlock()

	analysis, err := s.analyzer.Analyze(ctx, image, s.user)
	if err == nil {
		err = analysis.Validate()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.state != Analyzing {
		s.logger().Info("dropping stale analysis", "user", s.user, "generation", gen, "current", s.generation)
		return fmt.Errorf("%w: entry %d is %s", ErrStaleAnalysis, gen, s.state)
	}
	if err != nil {
		if !errors.Is(err, ErrAnalysis) {
			err = fmt.Errorf("%w: %w", ErrAnalysis, err)
		}
		s.lastErr = err
		s.transition(Captured)
		s.logger().Warn("analysis failed", "user", s.user, "error", err)
		return err
	}
	s.candidate = newCandidate(analysis, image)
	s.lastErr = nil
	s.transition(Adjustable)
	return nil
}

// SetPortion changes the candidate's portion. Nutrients are rescaled from the
// analysis baseline on every read, so edits never accumulate rounding.
//
// A non-positive portion is an ErrValidation and leaves the candidate unchanged.
func (s *CaptureSession) SetPortion(g Grams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Adjustable || s.committing {
		return s.invalid("set the portion")
	}
	if !g.IsPositive() {
		return fmt.Errorf("%w: portion %v is not positive", ErrValidation, g)
	}
	s.candidate.Portion = g
	return nil
}

// Commit saves the candidate in the ledger.
//
// If the ledger fails, the session stays Adjustable so that the user can try
// again or discard.
func (s *CaptureSession) Commit(ctx context.Context, ledger *DailyLedger) (CommittedMeal, error) {
	s.mu.Lock()
	if s.state != Adjustable || s.committing {
		defer s.mu.Unlock()
		return CommittedMeal{}, s.invalid("commit")
	}
	if ledger.User() != s.user {
		defer s.mu.Unlock()
		return CommittedMeal{}, fmt.Errorf("%w: ledger of %q cannot hold meals of %q", ErrValidation, ledger.User(), s.user)
	}
	s.committing = true
	candidate := s.candidate
	s.mu.Unlock()

	meal, err := ledger.Commit(ctx, candidate)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.committing = false
	if err != nil {
		return CommittedMeal{}, err
	}
	s.generation++
	s.image = nil
	s.candidate = CandidateMeal{}
	s.transition(Committed)
	return meal, nil
}

// Discard abandons the current entry from any in-progress state, releasing
// the capture source. A pending analysis response will be dropped. An entry
// being committed cannot be discarded: the ledger decides its outcome.
func (s *CaptureSession) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.resting() || s.committing {
		return s.invalid("discard")
	}
	return s.discard()
}

// discard drops the entry. s.mu must be held.
func (s *CaptureSession) discard() error {
	err := s.release()
	s.generation++
	s.image = nil
	s.candidate = CandidateMeal{}
	s.lastErr = nil
	s.transition(Discarded)
	return err
}

// Close discards any entry in progress and releases its resources. It is
// meant to be deferred by the owner of the session, so that an abnormal exit
// never leaks an open capture source.
//
// An entry being committed holds no source and is left to its Commit.
func (s *CaptureSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.resting() || s.committing {
		return nil
	}
	return s.discard()
}
