package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/use-agent/fundscrape/models"
)

// Publisher uploads written outputs to a Cloud Storage bucket.
type Publisher struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewPublisher connects to Cloud Storage. Without opts the client uses
// application default credentials.
func NewPublisher(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*Publisher, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeCredentialsMissing, "create storage client", err)
	}
	return &Publisher{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close releases the underlying client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// Publish uploads each file to <prefix>/<runDate>/<basename>. It stops at
// the first failure and returns the object names uploaded so far.
func (p *Publisher) Publish(ctx context.Context, runDate string, files []string) ([]string, error) {
	var done []string
	for _, f := range files {
		name := ObjectName(p.prefix, runDate, f)
		if err := p.upload(ctx, f, name); err != nil {
			return done, fmt.Errorf("upload %s to gs://%s/%s: %w", f, p.bucket, name, err)
		}
		done = append(done, name)
	}
	slog.Info("outputs_published", "step", "publish", "bucket", p.bucket, "objects", len(done))
	return done, nil
}

func (p *Publisher) upload(ctx context.Context, file, name string) error {
	src, err := os.Open(file)
	if err != nil {
		return err
	}
	defer src.Close()

	w := p.client.Bucket(p.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType(file)
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// ObjectName builds the bucket key for a local output file.
func ObjectName(prefix, runDate, file string) string {
	return path.Join(strings.Trim(prefix, "/"), runDate, filepath.Base(file))
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
