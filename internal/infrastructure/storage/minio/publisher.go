package minio

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// RunPrefix is the object key prefix of a run's artifacts.
func RunPrefix(runID string) string {
	return path.Join("runs", runID) + "/"
}

// Artifact describes one uploaded result file.
type Artifact struct {
	Bucket     string
	ObjectKey  string
	Size       int64
	ETag       string
	UploadedAt time.Time
}

// PublishRun uploads each file under runs/<runID>/<base name>.  The first
// failure aborts the remaining uploads.
func (c *Client) PublishRun(ctx context.Context, runID string, files []string) ([]Artifact, error) {
	if runID == "" {
		return nil, errors.InvalidParam("run id is required")
	}
	artifacts := make([]Artifact, 0, len(files))
	for _, f := range files {
		a, err := c.upload(ctx, runID, f)
		if err != nil {
			return artifacts, err
		}
		artifacts = append(artifacts, a)
	}
	c.logger.Info("Published run artifacts",
		logging.String("run_id", runID),
		logging.String("bucket", c.bucket),
		logging.Int("count", len(artifacts)))
	return artifacts, nil
}

func (c *Client) upload(ctx context.Context, runID, file string) (Artifact, error) {
	fh, err := os.Open(file)
	if err != nil {
		return Artifact{}, errors.Wrap(err, errors.ErrCodeIO, "failed to open artifact")
	}
	defer fh.Close()
	st, err := fh.Stat()
	if err != nil {
		return Artifact{}, errors.Wrap(err, errors.ErrCodeIO, "failed to stat artifact")
	}

	key := RunPrefix(runID) + filepath.Base(file)
	info, err := c.api.PutObject(ctx, c.bucket, key, fh, st.Size(), minio.PutObjectOptions{
		ContentType:  contentType(file),
		UserMetadata: map[string]string{"run-id": runID},
	})
	if err != nil {
		return Artifact{}, errors.New(errors.ErrCodeStorage, "upload failed").WithDetail(key).WithCause(err)
	}
	c.logger.Debug("Uploaded artifact", logging.String("key", key), logging.Int64("size", info.Size))
	return Artifact{
		Bucket:     c.bucket,
		ObjectKey:  key,
		Size:       info.Size,
		ETag:       info.ETag,
		UploadedAt: time.Now(),
	}, nil
}

// Exists reports whether an artifact of the run is already stored.
func (c *Client) Exists(ctx context.Context, runID, name string) (bool, error) {
	_, err := c.api.StatObject(ctx, c.bucket, RunPrefix(runID)+name, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeStorage, "failed to stat object")
}

func contentType(file string) string {
	switch {
	case strings.HasSuffix(file, ".gz"):
		return "application/gzip"
	case strings.HasSuffix(file, ".csv"):
		return "text/csv"
	case strings.HasSuffix(file, ".tsv"):
		return "text/tab-separated-values"
	case strings.HasSuffix(file, ".json"):
		return "application/json"
	}
	return "application/octet-stream"
}
