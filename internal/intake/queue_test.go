package intake

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cvintake/internal/intake/models"
	notifymodels "cvintake/internal/notify/models"
	"cvintake/internal/pending"
	"cvintake/internal/webhook"
)

type fakeForwarder struct {
	mu      sync.Mutex
	failOn  map[string]error
	results map[string]*webhook.Result
	calls   int
}

func newFakeForwarder() *fakeForwarder {
	return &fakeForwarder{failOn: map[string]error{}, results: map[string]*webhook.Result{}}
}

func (f *fakeForwarder) Forward(_ context.Context, files []webhook.File) (*webhook.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, file := range files {
		if err, ok := f.failOn[file.Name]; ok {
			return nil, err
		}
		if res, ok := f.results[file.Name]; ok {
			return res, nil
		}
	}
	return &webhook.Result{Status: "accepted"}, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	added []notifymodels.Notification
}

func (n *fakeNotifier) Add(notification notifymodels.Notification) notifymodels.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.added = append(n.added, notification)
	return notification
}

func (n *fakeNotifier) byType(typ notifymodels.Type) []notifymodels.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifymodels.Notification
	for _, notification := range n.added {
		if notification.Type == typ {
			out = append(out, notification)
		}
	}
	return out
}

type fakeBurst struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (b *fakeBurst) burst(_ context.Context) func() {
	b.mu.Lock()
	b.acquired++
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.released++
			b.mu.Unlock()
		})
	}
}

type fakeUploadObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *fakeUploadObserver) RecordUpload(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[outcome]++
}

type QueueSuite struct {
	suite.Suite
	session   *Session
	forwarder *fakeForwarder
	notifier  *fakeNotifier
	counter   *pending.Counter
	burst     *fakeBurst
	observer  *fakeUploadObserver
	queue     *Queue
}

func (s *QueueSuite) SetupTest() {
	s.session = NewSession(NewValidator(10<<20), nil)
	s.forwarder = newFakeForwarder()
	s.notifier = &fakeNotifier{}
	s.counter = pending.New()
	s.burst = &fakeBurst{}
	s.observer = &fakeUploadObserver{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.queue = NewQueue(s.forwarder, s.notifier, s.counter, s.burst.burst, s.observer, logger)
}

func TestQueueSuite(t *testing.T) {
	suite.Run(t, new(QueueSuite))
}

func (s *QueueSuite) stage(names ...string) []string {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		f, err := s.session.Add(name, "application/pdf", []byte("%PDF"))
		s.Require().NoError(err)
		ids = append(ids, f.ID)
	}
	return ids
}

func (s *QueueSuite) wait(done <-chan BatchSummary) BatchSummary {
	select {
	case summary := <-done:
		return summary
	case <-time.After(5 * time.Second):
		s.FailNow("timed out waiting for batch summary")
		return BatchSummary{}
	}
}

func (s *QueueSuite) TestSubmitBatch() {
	s.Run("independent outcomes per entry", func() {
		ids := s.stage("a.pdf", "b.pdf", "c.pdf")
		s.forwarder.failOn["b.pdf"] = errors.New("webhook returned 502")

		summary := s.wait(s.queue.Submit(context.Background(), s.session, ids))

		s.Equal(BatchSummary{Total: 3, Succeeded: 2, Failed: 1}, summary)

		statuses := map[string]models.Status{}
		for _, f := range s.session.Files() {
			statuses[f.Name] = f.Status
		}
		s.Equal(models.StatusSuccess, statuses["a.pdf"])
		s.Equal(models.StatusError, statuses["b.pdf"])
		s.Equal(models.StatusSuccess, statuses["c.pdf"])

		b, ok := s.session.Get(ids[1])
		s.Require().True(ok)
		s.Contains(b.Error, "502")
	})

	s.Run("every entry reaches exactly one terminal state", func() {
		for _, f := range s.session.Files() {
			s.True(f.Status.Terminal(), "file %s left in %s", f.Name, f.Status)
		}
	})

	s.Run("emits one notification per outcome", func() {
		errNotes := s.notifier.byType(notifymodels.TypeError)
		s.Require().Len(errNotes, 1)
		s.Equal("Upload Failed", errNotes[0].Title)
		s.Equal(notifymodels.PriorityHigh, errNotes[0].Priority)
		s.True(errNotes[0].Persistent)
		s.Contains(errNotes[0].Message, "502")

		s.Len(s.notifier.byType(notifymodels.TypeSuccess), 2)
	})

	s.Run("records outcome metrics", func() {
		s.Equal(2, s.observer.outcomes["success"])
		s.Equal(1, s.observer.outcomes["error"])
	})
}

func (s *QueueSuite) TestSuccessNotificationShape() {
	s.Run("candidate from the analysis result drives the title", func() {
		ids := s.stage("jane.pdf")
		s.forwarder.results["jane.pdf"] = &webhook.Result{Status: "success", Candidate: "Jane Doe"}

		s.wait(s.queue.Submit(context.Background(), s.session, ids))

		notes := s.notifier.byType(notifymodels.TypeSuccess)
		s.Require().Len(notes, 1)
		s.Equal("Jane Doe CV is done", notes[0].Title)
		s.Equal("Jane Doe", notes[0].Candidate)
	})

	s.Run("generic completion without a parsed result", func() {
		ids := s.stage("anon.pdf")

		s.wait(s.queue.Submit(context.Background(), s.session, ids))

		notes := s.notifier.byType(notifymodels.TypeSuccess)
		s.Require().Len(notes, 2)
		s.Equal("CV Analysis Complete!", notes[1].Title)
		s.Equal("Please reload the CV records to see updates.", notes[1].Message)
	})
}

func (s *QueueSuite) TestPendingCounterAndBurst() {
	ids := s.stage("a.pdf", "b.pdf")

	done := s.queue.Submit(context.Background(), s.session, ids)
	s.wait(done)

	s.Run("counter returns to zero after the batch", func() {
		s.Equal(0, s.counter.Value())
	})

	s.Run("burst subscription is acquired and released once per batch", func() {
		s.Equal(1, s.burst.acquired)
		s.Equal(1, s.burst.released)
	})
}

func (s *QueueSuite) TestUploadsOutliveCaller() {
	ids := s.stage("detached.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := s.wait(s.queue.Submit(ctx, s.session, ids))
	s.Equal(1, summary.Succeeded)

	f, ok := s.session.Get(ids[0])
	s.Require().True(ok)
	s.Equal(models.StatusSuccess, f.Status)
}

func (s *QueueSuite) TestSkipsEntriesNotPending() {
	ids := s.stage("a.pdf")
	s.Require().NoError(s.session.MarkUploading(ids[0]))

	summary := s.wait(s.queue.Submit(context.Background(), s.session, ids))

	s.Equal(BatchSummary{Total: 1, Succeeded: 0, Failed: 1}, summary)
	s.Equal(0, s.forwarder.calls)
}

func (s *QueueSuite) TestRemovedEntryFailsCleanly() {
	summary := s.wait(s.queue.Submit(context.Background(), s.session, []string{"missing"}))
	s.Equal(BatchSummary{Total: 1, Failed: 1}, summary)
	s.Equal(0, s.forwarder.calls)
}
