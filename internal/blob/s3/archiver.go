package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/notify"
)

// MultipartThreshold is the payload size above which uploads switch to the
// multipart uploader.
const MultipartThreshold = 5 * 1024 * 1024

const archiveContentType = "application/x-ndjson"

// maxPathAttempts bounds the suffixes tried when an archive key is taken.
const maxPathAttempts = 100

// CheckArchiveStore is the slice of the check log the archiver needs.
type CheckArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageCheck, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Notifier forwards operator events. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Archiver moves old check-log rows to object storage. Rows are deleted from
// the store only once the upload succeeded and, when a reader is configured,
// the object is visible in the bucket.
type Archiver struct {
	writer   domain.BlobWriter
	reader   domain.BlobReader
	checks   CheckArchiveStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewArchiver creates an Archiver. reader may be nil to skip verification.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, checks CheckArchiveStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		reader: reader,
		checks: checks,
		logger: logger.With(slog.String("component", "archiver")),
		now:    time.Now,
	}
}

// WithNotifier reports failed runs to n.
func (a *Archiver) WithNotifier(n Notifier) *Archiver {
	a.notifier = n
	return a
}

// ArchiveChecks uploads every check older than before as JSONL under
// archive/arb_checks/YYYY-MM-DD/ and then deletes those rows. Each run writes
// its own object; an existing key is never overwritten.
func (a *Archiver) ArchiveChecks(ctx context.Context, before time.Time) (domain.ArchiveResult, error) {
	checks, err := a.checks.ListBefore(ctx, before)
	if err != nil {
		return domain.ArchiveResult{}, fmt.Errorf("s3blob: archive checks query: %w", err)
	}
	if len(checks) == 0 {
		return domain.ArchiveResult{}, nil
	}

	buf, err := marshalJSONL(checks)
	if err != nil {
		return domain.ArchiveResult{}, fmt.Errorf("s3blob: archive checks marshal: %w", err)
	}

	path, err := a.freePath(ctx, ArchivePath("arb_checks", before))
	if err != nil {
		return domain.ArchiveResult{}, fmt.Errorf("s3blob: archive checks path: %w", err)
	}
	res := domain.ArchiveResult{
		Path:     path,
		Archived: int64(len(checks)),
	}
	if len(buf) > MultipartThreshold {
		err = a.writer.PutMultipart(ctx, res.Path, bytes.NewReader(buf), MultipartThreshold)
	} else {
		err = a.writer.Put(ctx, res.Path, bytes.NewReader(buf), archiveContentType)
	}
	if err != nil {
		return domain.ArchiveResult{}, fmt.Errorf("s3blob: archive checks upload: %w", err)
	}

	if a.reader != nil {
		ok, err := a.reader.Exists(ctx, res.Path)
		if err != nil {
			return res, fmt.Errorf("s3blob: archive checks verify: %w", err)
		}
		if !ok {
			return res, fmt.Errorf("s3blob: archive checks verify: %s missing after upload", res.Path)
		}
	}

	res.Deleted, err = a.checks.DeleteBefore(ctx, before)
	if err != nil {
		return res, fmt.Errorf("s3blob: archive checks delete: %w", err)
	}

	a.logger.InfoContext(ctx, "checks archived",
		slog.String("path", res.Path),
		slog.Int64("archived", res.Archived),
		slog.Int64("deleted", res.Deleted),
		slog.Int("bytes", len(buf)),
	)
	return res, nil
}

// Run archives checks older than retention immediately and then every
// interval until ctx is cancelled. Failed runs are logged and retried on the
// next tick.
func (a *Archiver) Run(ctx context.Context, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		cutoff := a.now().UTC().Add(-retention)
		if _, err := a.ArchiveChecks(ctx, cutoff); err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			a.logger.ErrorContext(ctx, "archive run failed",
				slog.Time("cutoff", cutoff),
				slog.String("error", err.Error()),
			)
			a.notifyFailure(ctx, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *Archiver) notifyFailure(ctx context.Context, err error) {
	if a.notifier == nil {
		return
	}
	if nerr := a.notifier.Notify(ctx, notify.EventError, "Check archive failed", err.Error()); nerr != nil {
		a.logger.WarnContext(ctx, "operator notification failed", slog.String("error", nerr.Error()))
	}
}

// freePath returns base, or base with a numeric suffix when an object already
// sits under base. Without a reader base is returned as is.
func (a *Archiver) freePath(ctx context.Context, base string) (string, error) {
	if a.reader == nil {
		return base, nil
	}
	stem := strings.TrimSuffix(base, ".jsonl")
	for i := 0; i < maxPathAttempts; i++ {
		path := base
		if i > 0 {
			path = fmt.Sprintf("%s-%d.jsonl", stem, i)
		}
		ok, err := a.reader.Exists(ctx, path)
		if err != nil {
			return "", err
		}
		if !ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("no free key after %d attempts for %s", maxPathAttempts, base)
}

// ArchivePath builds the object key for an archive file: partitioned by the
// UTC day of the cutoff and named after the cutoff itself.
//
//	archive/arb_checks/2025-01-31/20250131T120000Z.jsonl
func ArchivePath(kind string, before time.Time) string {
	t := before.UTC()
	return fmt.Sprintf("archive/%s/%s/%sZ.jsonl", kind, t.Format("2006-01-02"), t.Format("20060102T150405"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
