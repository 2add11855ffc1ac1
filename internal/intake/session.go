package intake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cvintake/internal/compose"
	"cvintake/internal/intake/models"
	dErrors "cvintake/pkg/domain-errors"
)

// Composer merges selected images into one composite file.
type Composer interface {
	Compose(ctx context.Context, files []compose.File, quality compose.Quality) (compose.File, error)
}

// PreviewFactory builds a revocable preview reference for an image entry.
// May be nil when previews are not wanted.
type PreviewFactory func(f *models.StagedFile) *models.Preview

// AddResult reports one file's outcome from a batched add. Err is nil when
// the file was staged.
type AddResult struct {
	Name string
	File *models.StagedFile
	Err  error
}

// Session owns the staged-file collection for one upload workflow. Only the
// session's explicit operations mutate it; no background process touches
// staged files. Composition selection lives here too, since consuming it must
// be atomic with the file swap.
type Session struct {
	validator *Validator
	previews  PreviewFactory
	now       func() time.Time

	mu       sync.Mutex
	files    []*models.StagedFile
	selected map[string]bool
	torn     bool
}

// NewSession creates an empty staging session.
func NewSession(validator *Validator, previews PreviewFactory) *Session {
	return &Session{
		validator: validator,
		previews:  previews,
		now:       time.Now,
		selected:  make(map[string]bool),
	}
}

// Add validates and stages one file. Rejected files are never staged; the
// returned error carries the user-visible reason.
func (s *Session) Add(name, mime string, data []byte) (*models.StagedFile, error) {
	if err := s.validator.Validate(name, mime, int64(len(data))); err != nil {
		return nil, err
	}

	f := models.NewStagedFile(name, mime, data, s.now())
	if f.IsImage() && s.previews != nil {
		f.Preview = s.previews(f)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.torn {
		if f.Preview != nil {
			f.Preview.Release()
		}
		return nil, dErrors.New(dErrors.CodeInvalidState, "session is closed")
	}
	s.files = append(s.files, f)
	return f, nil
}

// Incoming is a candidate file entering the session from drag-drop, the
// picker, or a camera capture.
type Incoming struct {
	Name string
	MIME string
	Data []byte
}

// AddBatch stages each file independently; one rejection never blocks the
// others.
func (s *Session) AddBatch(files []Incoming) []AddResult {
	results := make([]AddResult, 0, len(files))
	for _, in := range files {
		f, err := s.Add(in.Name, in.MIME, in.Data)
		results = append(results, AddResult{Name: in.Name, File: f, Err: err})
	}
	return results
}

// Remove deletes a staged file and releases its preview. Removing an unknown
// ID is a no-op.
func (s *Session) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

// removeLocked must be called while holding s.mu.
func (s *Session) removeLocked(id string) {
	for i, f := range s.files {
		if f.ID == id {
			if f.Preview != nil {
				f.Preview.Release()
			}
			s.files = append(s.files[:i], s.files[i+1:]...)
			delete(s.selected, id)
			return
		}
	}
}

// Files returns a snapshot of the staged entries in staging order.
func (s *Session) Files() []models.StagedFile {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.StagedFile, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, *f)
	}
	return out
}

// Get returns a snapshot of one staged entry.
func (s *Session) Get(id string) (models.StagedFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f := s.findLocked(id); f != nil {
		return *f, true
	}
	return models.StagedFile{}, false
}

// Pending returns the IDs of entries still awaiting submission.
func (s *Session) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, f := range s.files {
		if f.Status == models.StatusPending {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

// ToggleSelect flips an image entry in or out of the composition selection.
// Non-image entries cannot be selected.
func (s *Session) ToggleSelect(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.findLocked(id)
	if f == nil {
		return dErrors.New(dErrors.CodeNotFound, "no such staged file")
	}
	if !f.IsImage() {
		return dErrors.New(dErrors.CodeBadRequest, "only images can be selected for composition")
	}
	if s.selected[id] {
		delete(s.selected, id)
	} else {
		s.selected[id] = true
	}
	return nil
}

// Selection returns the selected IDs in staging order.
func (s *Session) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, f := range s.files {
		if s.selected[f.ID] {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

// ComposeSelected merges the selected images into one composite entry. On
// success the consumed sources are removed, their previews released, the
// selection cleared, and the composite staged — all atomically, so no
// observer ever sees sources and composite coexist. On failure the selection
// and sources are untouched and remain re-selectable.
func (s *Session) ComposeSelected(ctx context.Context, engine Composer, quality compose.Quality) (*models.StagedFile, error) {
	s.mu.Lock()
	var sources []*models.StagedFile
	for _, f := range s.files {
		if s.selected[f.ID] {
			sources = append(sources, f)
		}
	}
	if len(sources) < 2 {
		s.mu.Unlock()
		return nil, compose.ErrInsufficientSelection
	}
	inputs := make([]compose.File, len(sources))
	for i, f := range sources {
		inputs[i] = compose.File{Name: f.Name, MIME: f.MIME, Data: f.Data}
	}
	s.mu.Unlock()

	// The composition itself runs unlocked; decode can take seconds.
	out, err := engine.Compose(ctx, inputs, quality)
	if err != nil {
		return nil, fmt.Errorf("compose selection: %w", err)
	}

	composite := models.NewStagedFile(out.Name, out.MIME, out.Data, s.now())
	if s.previews != nil {
		composite.Preview = s.previews(composite)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, src := range sources {
		s.removeLocked(src.ID)
	}
	s.selected = make(map[string]bool)
	s.files = append(s.files, composite)
	return composite, nil
}

// MarkUploading transitions an entry from pending to uploading. Entries in
// any other state are left alone; no entry skips or repeats the transition.
func (s *Session) MarkUploading(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.findLocked(id)
	if f == nil {
		return dErrors.New(dErrors.CodeNotFound, "no such staged file")
	}
	if f.Status != models.StatusPending {
		return dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("cannot upload file in state %s", f.Status))
	}
	f.Status = models.StatusUploading
	return nil
}

// Resolve records the terminal outcome of an upload. Exactly one terminal
// state is reached per entry.
func (s *Session) Resolve(id string, status models.Status, errMsg string) {
	if !status.Terminal() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.findLocked(id)
	if f == nil || f.Status.Terminal() {
		return
	}
	f.Status = status
	f.Error = errMsg
}

// Teardown releases every preview and closes the session. Uploads already in
// flight are unaffected; their lifecycle is decoupled from the session UI.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.files {
		if f.Preview != nil {
			f.Preview.Release()
		}
	}
	s.torn = true
}

// findLocked must be called while holding s.mu.
func (s *Session) findLocked(id string) *models.StagedFile {
	for _, f := range s.files {
		if f.ID == id {
			return f
		}
	}
	return nil
}
