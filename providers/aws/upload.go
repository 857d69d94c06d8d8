package aws

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/picklr-io/sitedeploy/internal/ir"
	"github.com/picklr-io/sitedeploy/internal/logging"
)

const defaultUploadConcurrency = 8

// Uploader copies a local directory tree into a bucket.
type Uploader struct {
	client      PutObjectAPI
	concurrency int
	log         *slog.Logger
}

// NewUploader returns an Uploader running at most concurrency PutObject
// calls at once.
func NewUploader(client PutObjectAPI, concurrency int) *Uploader {
	if concurrency < 1 {
		concurrency = defaultUploadConcurrency
	}
	return &Uploader{
		client:      client,
		concurrency: concurrency,
		log:         logging.With("component", "upload"),
	}
}

type uploadFile struct {
	path string
	key  string
	size int64
}

// Transfer tracks one directory upload.
type Transfer struct {
	bucket string
	root   string
	files  []uploadFile
	total  int64
	sent   atomic.Int64
	done   chan struct{}
	err    error
}

var _ ir.Transfer = (*Transfer)(nil)

// Description implements ir.Transfer.
func (t *Transfer) Description() string {
	return fmt.Sprintf("Uploading %d files from %s to bucket %s", len(t.files), t.root, t.bucket)
}

// Progress implements ir.Transfer.
func (t *Transfer) Progress() float64 {
	if t.total == 0 {
		select {
		case <-t.done:
			return 100
		default:
			return 0
		}
	}
	return float64(t.sent.Load()) * 100 / float64(t.total)
}

// Done implements ir.Transfer.
func (t *Transfer) Done() <-chan struct{} {
	return t.done
}

// Err implements ir.Transfer.
func (t *Transfer) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Keys returns the object keys the transfer writes, in walk order.
func (t *Transfer) Keys() []string {
	keys := make([]string, len(t.files))
	for i, f := range t.files {
		keys[i] = f.key
	}
	return keys
}

// UploadDirectory starts uploading root into bucket in the background. Object
// keys are paths relative to root with forward slashes. Without recursive only
// the files directly under root are sent.
func (u *Uploader) UploadDirectory(ctx context.Context, bucket, root string, recursive bool) (ir.Transfer, error) {
	files, total, err := collectFiles(root, recursive)
	if err != nil {
		return nil, err
	}

	t := &Transfer{
		bucket: bucket,
		root:   root,
		files:  files,
		total:  total,
		done:   make(chan struct{}),
	}
	u.log.Info("starting upload", "bucket", bucket, "root", root, "files", len(files), "bytes", total)

	go u.run(ctx, t)
	return t, nil
}

func collectFiles(root string, recursive bool) ([]uploadFile, int64, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read content folder: %w", err)
	}
	if !info.IsDir() {
		return nil, 0, fmt.Errorf("content folder %s is not a directory", root)
	}

	var files []uploadFile
	var total int64
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, uploadFile{path: path, key: filepath.ToSlash(rel), size: fi.Size()})
		total += fi.Size()
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to walk content folder %s: %w", root, err)
	}
	return files, total, nil
}

func (u *Uploader) run(ctx context.Context, t *Transfer) {
	defer close(t.done)

	var mu sync.Mutex
	var errs []error
	sem := make(chan struct{}, u.concurrency)
	var wg sync.WaitGroup

	for _, f := range t.files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(f uploadFile) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := u.putFile(ctx, t.bucket, f); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			t.sent.Add(f.size)
		}(f)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		t.err = fmt.Errorf("upload cancelled: %w", err)
		return
	}
	if len(errs) > 0 {
		t.err = fmt.Errorf("%d of %d files failed to upload: %w", len(errs), len(t.files), errors.Join(errs...))
		u.log.Error("upload failed", "bucket", t.bucket, "failed", len(errs))
		return
	}
	u.log.Info("upload complete", "bucket", t.bucket, "files", len(t.files))
}

func (u *Uploader) putFile(ctx context.Context, bucket string, f uploadFile) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer file.Close()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(f.key),
		Body:          file,
		ContentLength: aws.Int64(f.size),
	}
	if ct := ContentType(f.key); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", f.key, err)
	}
	u.log.Debug("uploaded object", "bucket", bucket, "key", f.key, "bytes", f.size)
	return nil
}

// ContentType guesses the MIME type of an object from its key.
func ContentType(key string) string {
	return mime.TypeByExtension(filepath.Ext(key))
}
