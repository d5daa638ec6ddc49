// Package review records human corrections against the latest version of a
// document and keeps the audit trail that makes them replayable.
package review

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/contract-review/internal/apperr"
	"github.com/sells-group/contract-review/internal/model"
	"github.com/sells-group/contract-review/internal/postback"
	"github.com/sells-group/contract-review/internal/resilience"
	"github.com/sells-group/contract-review/internal/store"
)

// maxReviewerLen bounds the opaque reviewer identity.
const maxReviewerLen = 256

// invalidateTimeout bounds the post-commit cache invalidation.
const invalidateTimeout = 5 * time.Second

// Notifier receives committed reviews. Enqueue must not block.
type Notifier interface {
	Enqueue(ev postback.Event) bool
}

// Invalidator drops derived state for a document after its fields change.
type Invalidator interface {
	Invalidate(ctx context.Context, documentID string) error
}

// Config tunes submission.
type Config struct {
	// Timeout bounds the whole submission. Zero means no extra deadline.
	Timeout         time.Duration
	DefaultStatus   model.DocumentStatus
	ConflictRetries int
}

// Submission is one batch of corrections keyed by stable attribute key. An
// empty value clears the correction.
type Submission struct {
	DocumentID  string
	Corrections map[string]string
	Reviewer    string
	// Status overrides Config.DefaultStatus when set.
	Status model.DocumentStatus
}

// Outcome describes a committed review.
type Outcome struct {
	SessionID     string   `json:"reviewSessionId"`
	VersionID     string   `json:"versionId"`
	VersionNumber int      `json:"versionNumber"`
	UpdatedKeys   []string `json:"updatedKeys"`
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithNotifier sets the post-commit hook.
func WithNotifier(n Notifier) Option {
	return func(r *Recorder) { r.notifier = n }
}

// WithInvalidator sets what is invalidated after a review updates fields.
func WithInvalidator(inv Invalidator) Option {
	return func(r *Recorder) { r.invalidator = inv }
}

// Recorder applies review submissions.
type Recorder struct {
	store       store.Store
	cfg         Config
	notifier    Notifier
	invalidator Invalidator

	now   func() time.Time
	newID func() string
}

// NewRecorder creates a Recorder over st.
func NewRecorder(st store.Store, cfg Config, opts ...Option) *Recorder {
	if cfg.DefaultStatus == "" {
		cfg.DefaultStatus = model.DefaultReviewedStatus
	}
	r := &Recorder{
		store: st,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit applies sub to the document's latest version in one transaction.
// Keys missing from the latest version are skipped, as are keys whose
// correction would not change. A ConflictError is retried up to
// Config.ConflictRetries times; any other failure leaves the store as it was.
func (r *Recorder) Submit(ctx context.Context, sub Submission) (*Outcome, error) {
	status, err := r.validate(sub)
	if err != nil {
		return nil, err
	}
	sub.Reviewer = strings.TrimSpace(sub.Reviewer)

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	keys := make([]string, 0, len(sub.Corrections))
	for k := range sub.Corrections {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out *Outcome
	err = resilience.Do(ctx, resilience.ConflictRetry(r.cfg.ConflictRetries), func(ctx context.Context) error {
		var txErr error
		out, txErr = r.apply(ctx, sub, keys, status)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("component", "review"),
		zap.String("document_id", sub.DocumentID),
		zap.String("version_id", out.VersionID),
		zap.String("review_id", out.SessionID),
	)
	log.Info("review committed",
		zap.Int("version_number", out.VersionNumber),
		zap.Int("updated", len(out.UpdatedKeys)),
	)

	if len(out.UpdatedKeys) > 0 && r.invalidator != nil {
		// The commit already happened; invalidate even if the caller's
		// deadline has passed.
		invCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
		err := r.invalidator.Invalidate(invCtx, sub.DocumentID)
		cancel()
		if err != nil {
			log.Warn("review: attribution cache invalidation failed", zap.Error(err))
		}
	}
	if r.notifier != nil {
		r.notifier.Enqueue(r.event(sub, keys, status, out))
	}
	return out, nil
}

func (r *Recorder) apply(ctx context.Context, sub Submission, keys []string, status model.DocumentStatus) (*Outcome, error) {
	var out *Outcome
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.LockDocument(ctx, sub.DocumentID); err != nil {
			return err
		}
		latest, err := tx.LatestVersion(ctx, sub.DocumentID)
		if err != nil {
			return err
		}

		now := r.now()
		session := &model.ReviewSession{
			ID:              r.newID(),
			DocumentID:      sub.DocumentID,
			TargetVersionID: latest.ID,
			Reviewer:        sub.Reviewer,
			Status:          model.SessionInProgress,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.CreateReviewSession(ctx, session); err != nil {
			return err
		}

		updated := make([]string, 0, len(keys))
		for _, key := range keys {
			changed, err := r.applyField(ctx, tx, session, latest.ID, key, sub.Corrections[key], now)
			if err != nil {
				return err
			}
			if changed {
				updated = append(updated, key)
			}
		}

		if err := tx.CompleteReviewSession(ctx, session.ID, now); err != nil {
			return err
		}
		if err := tx.MarkDocumentReviewed(ctx, sub.DocumentID, status, sub.Reviewer); err != nil {
			return err
		}

		out = &Outcome{
			SessionID:     session.ID,
			VersionID:     latest.ID,
			VersionNumber: latest.VersionNumber,
			UpdatedKeys:   updated,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applyField reports whether key's correction changed.
func (r *Recorder) applyField(ctx context.Context, tx store.Tx, session *model.ReviewSession, versionID, key, proposed string, at time.Time) (bool, error) {
	field, err := tx.LockField(ctx, versionID, key)
	if err != nil {
		return false, err
	}
	if field == nil {
		zap.L().Debug("review: key not in latest version",
			zap.String("component", "review"),
			zap.String("version_id", versionID),
			zap.String("attribute_key", key),
		)
		return false, nil
	}

	old := field.Correction()
	if strings.TrimSpace(old) == strings.TrimSpace(proposed) {
		return false, nil
	}

	var value *string
	if strings.TrimSpace(proposed) == "" {
		proposed = ""
	} else {
		value = &proposed
	}
	if err := tx.SetCorrectedValue(ctx, field.ID, value); err != nil {
		return false, err
	}
	if err := tx.InsertReviewedField(ctx, &model.ReviewedField{
		ID:                r.newID(),
		ReviewID:          session.ID,
		DocumentID:        session.DocumentID,
		TargetVersionID:   versionID,
		Key:               key,
		OriginalValue:     field.FieldValue,
		OldCorrectedValue: old,
		NewCorrectedValue: proposed,
		ReviewedBy:        session.Reviewer,
		ReviewedAt:        at,
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Recorder) validate(sub Submission) (model.DocumentStatus, error) {
	if strings.TrimSpace(sub.DocumentID) == "" {
		return "", apperr.Invalid("documentId", "is required")
	}
	if len(sub.Corrections) == 0 {
		return "", apperr.Invalid("corrections", "must not be empty")
	}
	for k := range sub.Corrections {
		if strings.TrimSpace(k) == "" {
			return "", apperr.Invalid("corrections", "attribute key must not be blank")
		}
	}
	reviewer := strings.TrimSpace(sub.Reviewer)
	if reviewer == "" {
		return "", apperr.Invalid("reviewer", "is required")
	}
	if len(reviewer) > maxReviewerLen {
		return "", apperr.Invalid("reviewer", "is too long")
	}

	status := sub.Status
	if status == "" {
		status = r.cfg.DefaultStatus
	}
	if !model.ValidDocumentStatus(status) {
		return "", apperr.Invalid("status", "unknown document status "+string(status))
	}
	return status, nil
}

func (r *Recorder) event(sub Submission, keys []string, status model.DocumentStatus, out *Outcome) postback.Event {
	attrs := make([]postback.Attribute, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, postback.Attribute{
			ID:             k,
			RowID:          model.RowID(k, out.VersionID),
			CorrectedValue: sub.Corrections[k],
		})
	}
	return postback.Event{
		DocumentID:      sub.DocumentID,
		VersionID:       out.VersionID,
		VersionNumber:   out.VersionNumber,
		ReviewSessionID: out.SessionID,
		ReviewedBy:      sub.Reviewer,
		Status:          string(status),
		Attributes:      attrs,
		UpdatedKeys:     out.UpdatedKeys,
		Timestamp:       r.now(),
	}
}
