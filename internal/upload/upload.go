// Package upload implements the multi-destination retry primitive that
// every higher-level task (snapshot, recording) drives to land an artifact
// on every configured destination (spec §4.C).
package upload

import (
	"context"
	"time"

	"github.com/nvrsync/camsync/internal/descriptor"
	"github.com/nvrsync/camsync/internal/destination"
	camerrors "github.com/nvrsync/camsync/internal/errors"
	"github.com/nvrsync/camsync/internal/logger"
)

// File is the payload of an Upload operation.
type File struct {
	Bytes       []byte
	FileName    string
	UploadDir   string
	Description string
}

// FullUploadPath is upload_dir joined with file_name, as the destination's
// remote path.
func (f File) FullUploadPath() string {
	if f.UploadDir == "" {
		return f.FileName
	}
	return f.UploadDir + "/" + f.FileName
}

// Operation is the sealed set of things the primitive can do to every
// destination: Upload or DeleteIfExists.
type Operation interface {
	apply(ctx context.Context, d destination.Destination) error
	describe() string
}

type uploadOp struct{ file File }

func (o uploadOp) describe() string { return "upload:" + o.file.FullUploadPath() }

func (o uploadOp) apply(ctx context.Context, d destination.Destination) error {
	if err := d.MkdirP(ctx, o.file.UploadDir); err != nil {
		return err
	}
	return d.PutFromMemory(ctx, o.file.Bytes, o.file.FullUploadPath())
}

type deleteIfExistsOp struct{ path string }

func (o deleteIfExistsOp) describe() string { return "delete_if_exists:" + o.path }

func (o deleteIfExistsOp) apply(ctx context.Context, d destination.Destination) error {
	exists, err := d.FileExists(ctx, o.path)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return d.DelFile(ctx, o.path)
}

// Upload builds the Upload(file) operation.
func Upload(file File) Operation { return uploadOp{file: file} }

// DeleteIfExists builds the DeleteIfExists(remote_path) operation.
func DeleteIfExists(remotePath string) Operation { return deleteIfExistsOp{path: remotePath} }

// ErrExhaustedRetries is returned by Run when max_attempts rounds elapse
// with destinations still pending. The remaining descriptors are listed in
// the error's context in their Display form (inline identity redacted),
// per spec §7 (UploadExhaustedRetries).
var ErrExhaustedRetries = camerrors.NewStd("upload primitive exhausted retry attempts")

// Run drives operation against descriptors for up to maxAttempts attempt
// rounds, sleeping retrySleep between rounds that leave destinations
// pending. Destinations within a round, and across rounds, are always
// processed in descriptor order (spec §4.C); there is no parallelism
// within the primitive.
func Run(ctx context.Context, log logger.Logger, op Operation, descriptors []descriptor.Descriptor, maxAttempts int, retrySleep time.Duration) error {
	log = log.Module("upload")
	pending := make([]descriptor.Descriptor, len(descriptors))
	copy(pending, descriptors)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if len(pending) == 0 {
			return nil
		}

		var stillPending []descriptor.Descriptor
		for _, d := range pending {
			if err := ctx.Err(); err != nil {
				return camerrors.New(err).
					Component(camerrors.ComponentUpload).
					Category(camerrors.CategoryCancellation).
					Build()
			}

			dest, err := destination.New(d)
			if err != nil {
				log.Warn("failed to instantiate destination, keeping pending",
					logger.String("descriptor", d.Display()),
					logger.Int("attempt", attempt),
					logger.Err(err))
				stillPending = append(stillPending, d)
				continue
			}

			if opErr := runOne(ctx, dest, op); opErr != nil {
				log.Warn("upload operation failed, will retry",
					logger.String("descriptor", d.Display()),
					logger.String("operation", op.describe()),
					logger.Int("attempt", attempt),
					logger.Err(opErr))
				stillPending = append(stillPending, d)
			}
			_ = dest.Close()
		}

		pending = stillPending
		if len(pending) == 0 {
			return nil
		}

		if attempt < maxAttempts {
			select {
			case <-time.After(retrySleep):
			case <-ctx.Done():
				return camerrors.New(ctx.Err()).
					Component(camerrors.ComponentUpload).
					Category(camerrors.CategoryCancellation).
					Build()
			}
		}
	}

	remaining := make([]string, 0, len(pending))
	for _, d := range pending {
		remaining = append(remaining, d.Display())
	}
	return camerrors.New(ErrExhaustedRetries).
		Component(camerrors.ComponentUpload).
		Category(camerrors.CategoryUpload).
		Context("operation", op.describe()).
		Context("remaining_descriptors", remaining).
		Context("max_attempts", maxAttempts).
		Build()
}

func runOne(ctx context.Context, dest destination.Destination, op Operation) error {
	if err := dest.Init(ctx); err != nil {
		return err
	}
	return op.apply(ctx, dest)
}
