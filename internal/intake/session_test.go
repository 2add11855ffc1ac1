package intake

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"cvintake/internal/compose"
	"cvintake/internal/intake/models"
	dErrors "cvintake/pkg/domain-errors"
)

type SessionSuite struct {
	suite.Suite
	session  *Session
	released map[string]int
}

func (s *SessionSuite) SetupTest() {
	s.released = map[string]int{}
	previews := func(f *models.StagedFile) *models.Preview {
		ref := "preview:" + f.ID
		return models.NewPreview(ref, func() { s.released[ref]++ })
	}
	s.session = NewSession(NewValidator(10<<20), previews)
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) pngData(w, h int) []byte {
	var buf bytes.Buffer
	s.Require().NoError(png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func (s *SessionSuite) addImage(name string) *models.StagedFile {
	f, err := s.session.Add(name, "image/png", s.pngData(20, 20))
	s.Require().NoError(err)
	return f
}

func (s *SessionSuite) TestAdd() {
	s.Run("stages a valid file as pending", func() {
		f, err := s.session.Add("resume.pdf", "application/pdf", []byte("%PDF-1.4"))
		s.Require().NoError(err)

		s.NotEmpty(f.ID)
		s.Equal(models.StatusPending, f.Status)
		s.Nil(f.Preview)
		s.Len(s.session.Files(), 1)
	})

	s.Run("attaches a preview to images only", func() {
		f := s.addImage("photo.png")
		s.Require().NotNil(f.Preview)
		s.Equal("preview:"+f.ID, f.Preview.Ref)
	})

	s.Run("rejected files are never staged", func() {
		before := len(s.session.Files())
		_, err := s.session.Add("archive.zip", "application/zip", []byte("PK"))
		s.Require().Error(err)
		s.Len(s.session.Files(), before)
	})
}

func (s *SessionSuite) TestAddBatch() {
	results := s.session.AddBatch([]Incoming{
		{Name: "a.pdf", MIME: "application/pdf", Data: []byte("%PDF")},
		{Name: "bad.zip", MIME: "application/zip", Data: []byte("PK")},
		{Name: "b.png", MIME: "image/png", Data: s.pngData(10, 10)},
	})

	s.Require().Len(results, 3)
	s.NoError(results[0].Err)
	s.Error(results[1].Err)
	s.NoError(results[2].Err)
	s.Len(s.session.Files(), 2)
}

func (s *SessionSuite) TestRemove() {
	s.Run("releases the preview and clears selection", func() {
		f := s.addImage("photo.png")
		s.Require().NoError(s.session.ToggleSelect(f.ID))

		s.session.Remove(f.ID)

		s.Empty(s.session.Files())
		s.Empty(s.session.Selection())
		s.Equal(1, s.released["preview:"+f.ID])
	})

	s.Run("unknown id is a no-op", func() {
		s.addImage("keep.png")
		before := len(s.session.Files())
		s.session.Remove("missing")
		s.Len(s.session.Files(), before)
	})
}

func (s *SessionSuite) TestSelection() {
	s.Run("only images are selectable", func() {
		doc, err := s.session.Add("resume.pdf", "application/pdf", []byte("%PDF"))
		s.Require().NoError(err)

		err = s.session.ToggleSelect(doc.ID)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("selecting an unknown id fails", func() {
		err := s.session.ToggleSelect("missing")
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})

	s.Run("toggle flips membership and keeps staging order", func() {
		a := s.addImage("a.png")
		b := s.addImage("b.png")

		s.Require().NoError(s.session.ToggleSelect(b.ID))
		s.Require().NoError(s.session.ToggleSelect(a.ID))
		s.Equal([]string{a.ID, b.ID}, s.session.Selection())

		s.Require().NoError(s.session.ToggleSelect(a.ID))
		s.Equal([]string{b.ID}, s.session.Selection())
	})
}

func (s *SessionSuite) TestComposeSelected() {
	engine := compose.NewEngine()

	s.Run("replaces sources with the composite atomically", func() {
		doc, err := s.session.Add("resume.pdf", "application/pdf", []byte("%PDF"))
		s.Require().NoError(err)
		a := s.addImage("page1.png")
		b := s.addImage("page2.png")
		c := s.addImage("unselected.png")

		s.Require().NoError(s.session.ToggleSelect(a.ID))
		s.Require().NoError(s.session.ToggleSelect(b.ID))

		composite, err := s.session.ComposeSelected(context.Background(), engine, compose.QualityMedium)
		s.Require().NoError(err)

		s.True(strings.HasPrefix(composite.Name, "merged-cv-"))
		s.Equal(models.StatusPending, composite.Status)
		s.NotNil(composite.Preview)

		files := s.session.Files()
		s.Require().Len(files, 3)
		ids := []string{files[0].ID, files[1].ID, files[2].ID}
		s.Contains(ids, doc.ID)
		s.Contains(ids, c.ID)
		s.Contains(ids, composite.ID)

		s.Empty(s.session.Selection())
		s.Equal(1, s.released["preview:"+a.ID])
		s.Equal(1, s.released["preview:"+b.ID])
		s.Zero(s.released["preview:"+c.ID])
	})

	s.Run("fewer than two selected images fails", func() {
		a := s.addImage("solo.png")
		s.Require().NoError(s.session.ToggleSelect(a.ID))

		_, err := s.session.ComposeSelected(context.Background(), engine, compose.QualityMedium)
		s.Require().ErrorIs(err, compose.ErrInsufficientSelection)

		s.session.Remove(a.ID)
	})

	s.Run("failure leaves sources and selection untouched", func() {
		a := s.addImage("good.png")
		broken, err := s.session.Add("broken.png", "image/png", []byte("not an image"))
		s.Require().NoError(err)

		s.Require().NoError(s.session.ToggleSelect(a.ID))
		s.Require().NoError(s.session.ToggleSelect(broken.ID))

		before := len(s.session.Files())
		_, err = s.session.ComposeSelected(context.Background(), engine, compose.QualityMedium)
		s.Require().Error(err)

		s.Len(s.session.Files(), before)
		s.Len(s.session.Selection(), 2)
		s.Zero(s.released["preview:"+a.ID])
	})
}

func (s *SessionSuite) TestCaptureScenario() {
	// Three captures staged, two composed: the session ends with two files.
	engine := compose.NewEngine()

	var captures []*models.StagedFile
	for i := 1; i <= 3; i++ {
		captures = append(captures, s.addImage(fmt.Sprintf("camera-capture-%d.jpg", i)))
	}
	s.Require().Len(s.session.Files(), 3)

	s.Require().NoError(s.session.ToggleSelect(captures[0].ID))
	s.Require().NoError(s.session.ToggleSelect(captures[1].ID))

	composite, err := s.session.ComposeSelected(context.Background(), engine, compose.QualityHigh)
	s.Require().NoError(err)

	files := s.session.Files()
	s.Require().Len(files, 2)
	s.Equal(captures[2].ID, files[0].ID)
	s.Equal(composite.ID, files[1].ID)
}

func (s *SessionSuite) TestStatusTransitions() {
	s.Run("mark uploading requires pending", func() {
		f := s.addImage("a.png")
		s.Require().NoError(s.session.MarkUploading(f.ID))

		err := s.session.MarkUploading(f.ID)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeInvalidState))
	})

	s.Run("resolve is terminal exactly once", func() {
		f := s.addImage("b.png")
		s.Require().NoError(s.session.MarkUploading(f.ID))

		s.session.Resolve(f.ID, models.StatusSuccess, "")
		s.session.Resolve(f.ID, models.StatusError, "late failure")

		got, ok := s.session.Get(f.ID)
		s.Require().True(ok)
		s.Equal(models.StatusSuccess, got.Status)
		s.Empty(got.Error)
	})

	s.Run("resolve ignores non-terminal statuses", func() {
		f := s.addImage("c.png")
		s.session.Resolve(f.ID, models.StatusUploading, "")

		got, _ := s.session.Get(f.ID)
		s.Equal(models.StatusPending, got.Status)
	})

	s.Run("pending lists only unsubmitted entries", func() {
		session := NewSession(NewValidator(10<<20), nil)
		a, err := session.Add("a.pdf", "application/pdf", []byte("%PDF"))
		s.Require().NoError(err)
		b, err := session.Add("b.pdf", "application/pdf", []byte("%PDF"))
		s.Require().NoError(err)

		s.Require().NoError(session.MarkUploading(a.ID))
		s.Equal([]string{b.ID}, session.Pending())
	})
}

func (s *SessionSuite) TestTeardown() {
	a := s.addImage("a.png")
	b := s.addImage("b.png")

	s.session.Teardown()
	s.Equal(1, s.released["preview:"+a.ID])
	s.Equal(1, s.released["preview:"+b.ID])

	s.Run("closed session rejects new files and releases their previews", func() {
		_, err := s.session.Add("late.png", "image/png", s.pngData(5, 5))
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeInvalidState))
	})

	s.Run("teardown is idempotent for previews", func() {
		s.session.Teardown()
		s.Equal(1, s.released["preview:"+a.ID])
	})
}
