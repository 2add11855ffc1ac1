package intake

import (
	"context"
	"log/slog"
	"sync"

	"cvintake/internal/intake/models"
	notifymodels "cvintake/internal/notify/models"
	"cvintake/internal/pending"
	"cvintake/internal/webhook"
)

// Forwarder submits file payloads to the external analysis webhook.
type Forwarder interface {
	Forward(ctx context.Context, files []webhook.File) (*webhook.Result, error)
}

// Notifier receives the local notifications emitted for terminal upload
// outcomes.
type Notifier interface {
	Add(n notifymodels.Notification) notifymodels.Notification
}

// BurstFunc starts a burst notification-sync subscription and returns its
// release function.
type BurstFunc func(ctx context.Context) (release func())

// UploadObserver receives terminal outcome counts for metrics.
type UploadObserver interface {
	RecordUpload(outcome string)
}

// BatchSummary reports the aggregate outcome of one submitted batch. It is
// delivered only after every entry has reached a terminal state.
type BatchSummary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Queue orchestrates per-file submission to the analysis webhook. Entries
// are processed independently: one failure never aborts or blocks siblings,
// nothing is retried automatically, and every entry that starts uploading
// reaches exactly one terminal state.
type Queue struct {
	forwarder Forwarder
	notifier  Notifier
	pending   *pending.Counter
	burst     BurstFunc
	observer  UploadObserver
	logger    *slog.Logger
}

// NewQueue creates an upload queue. burst and observer may be nil.
func NewQueue(forwarder Forwarder, notifier Notifier, counter *pending.Counter, burst BurstFunc, observer UploadObserver, logger *slog.Logger) *Queue {
	return &Queue{
		forwarder: forwarder,
		notifier:  notifier,
		pending:   counter,
		burst:     burst,
		observer:  observer,
		logger:    logger,
	}
}

// Submit uploads the given session entries. It returns immediately; status
// mutations on the session are the observable progress, and the returned
// channel delivers the batch summary once every entry is terminal. Uploads
// outlive the caller's context: dismissing the originating UI must not
// cancel work already in flight.
func (q *Queue) Submit(ctx context.Context, session *Session, ids []string) <-chan BatchSummary {
	done := make(chan BatchSummary, 1)

	// Detach from the caller's cancellation but keep its values.
	uploadCtx := context.WithoutCancel(ctx)

	q.pending.Increment()
	var release func()
	if q.burst != nil {
		release = q.burst(uploadCtx)
	}

	go func() {
		var wg sync.WaitGroup
		var mu sync.Mutex
		summary := BatchSummary{Total: len(ids)}

		for _, id := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok := q.submitOne(uploadCtx, session, id)
				mu.Lock()
				if ok {
					summary.Succeeded++
				} else {
					summary.Failed++
				}
				mu.Unlock()
			}()
		}
		wg.Wait()

		q.pending.Decrement()
		if release != nil {
			release()
		}
		done <- summary
		close(done)
	}()

	return done
}

// submitOne drives a single entry from pending to its terminal state.
func (q *Queue) submitOne(ctx context.Context, session *Session, id string) bool {
	if err := session.MarkUploading(id); err != nil {
		q.logger.Warn("skipping upload entry", "file_id", id, "error", err.Error())
		return false
	}

	snapshot, ok := session.Get(id)
	if !ok {
		session.Resolve(id, models.StatusError, "file removed before upload")
		return false
	}

	result, err := q.forwarder.Forward(ctx, []webhook.File{{
		ID:   snapshot.ID,
		Name: snapshot.Name,
		MIME: snapshot.MIME,
		Size: snapshot.Size,
		Data: snapshot.Data,
	}})
	if err != nil {
		session.Resolve(id, models.StatusError, err.Error())
		if q.observer != nil {
			q.observer.RecordUpload("error")
		}
		q.logger.Error("upload failed",
			"file_id", id,
			"file_name", snapshot.Name,
			"error", err.Error(),
		)
		q.notifier.Add(notifymodels.Notification{
			Title:      "Upload Failed",
			Message:    err.Error() + ". Please try again or contact support if the issue persists.",
			Type:       notifymodels.TypeError,
			Priority:   notifymodels.PriorityHigh,
			Persistent: true,
			CanHide:    true,
		})
		return false
	}

	session.Resolve(id, models.StatusSuccess, "")
	if q.observer != nil {
		q.observer.RecordUpload("success")
	}

	title := "CV Analysis Complete!"
	message := "Please reload the CV records to see updates."
	candidate := ""
	if result != nil && result.Status == "success" {
		candidate = result.Candidate
		if candidate == "" {
			candidate = "Candidate"
		}
		title = candidate + " CV is done"
		message = "CV analysis completed successfully for " + candidate
	}
	q.notifier.Add(notifymodels.Notification{
		Title:      title,
		Message:    message,
		Type:       notifymodels.TypeSuccess,
		Priority:   notifymodels.PriorityMedium,
		Candidate:  candidate,
		Persistent: true,
		CanHide:    true,
	})
	return true
}
