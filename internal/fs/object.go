package fs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

const createdAtMeta = "Created-At"

// ObjectOptions contains configuration for the S3-compatible connection.
type ObjectOptions struct {
	Endpoint string
	Bucket   string
	Access   string
	Secret   string
	Token    string
	Region   string
	UseSSL   bool
}

// ObjectFS implements Backend on a single bucket of an S3-compatible object
// store. Object keys are the file names.
type ObjectFS struct {
	client *minio.Client
	bucket string
}

// NewObjectFS connects to the object store and checks that the bucket exists.
func NewObjectFS(ctx context.Context, opts ObjectOptions) (*ObjectFS, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("%w: no bucket configured", ErrBackendUnavailable)
	}

	var creds *credentials.Credentials
	if opts.Access != "" && opts.Secret != "" {
		creds = credentials.NewStaticV4(opts.Access, opts.Secret, opts.Token)
	} else {
		creds = credentials.NewIAM("")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: could not connect to %s: %v", ErrBackendUnavailable, opts.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: error when accessing bucket %s: %v", ErrBackendUnavailable, opts.Bucket, err)
	} else if !exists {
		return nil, fmt.Errorf("%w: bucket %s does not exist", ErrBackendUnavailable, opts.Bucket)
	}

	logrus.WithFields(logrus.Fields{
		"endpoint": opts.Endpoint,
		"bucket":   opts.Bucket,
		"use-ssl":  opts.UseSSL,
	}).Info("using object store")

	return &ObjectFS{client: client, bucket: opts.Bucket}, nil
}

// Name identifies the backend in logs and health output.
func (o *ObjectFS) Name() string {
	return "object-store"
}

// List returns the top level of the bucket. Common prefixes are reported
// as directories and never descended into.
func (o *ObjectFS) List(ctx context.Context) ([]FileEntry, error) {
	var entries []FileEntry
	opts := minio.ListObjectsOptions{
		Recursive:    false,
		WithMetadata: true,
	}

	for object := range o.client.ListObjects(ctx, o.bucket, opts) {
		if object.Err != nil {
			return nil, fmt.Errorf("%w: could not list bucket %s: %v", ErrBackendUnavailable, o.bucket, object.Err)
		}
		if strings.HasSuffix(object.Key, "/") {
			entries = append(entries, FileEntry{
				Name:  strings.TrimSuffix(object.Key, "/"),
				Path:  o.bucket + "/" + object.Key,
				IsDir: true,
			})
			continue
		}
		entries = append(entries, FileEntry{
			Name:      object.Key,
			Path:      o.bucket + "/" + object.Key,
			Size:      object.Size,
			CreatedAt: createdAt(object.UserMetadata, object.LastModified),
			ModTime:   object.LastModified,
			MimeType:  object.ContentType,
		})
	}

	logrus.WithFields(logrus.Fields{
		"bucket": o.bucket,
		"count":  len(entries),
	}).Debug("found objects")
	return entries, nil
}

// Read downloads the named object.
func (o *ObjectFS) Read(ctx context.Context, name string) ([]byte, error) {
	object, err := o.client.GetObject(ctx, o.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, o.mapErr(name, err, ErrBackendUnavailable)
	}
	defer func() { _ = object.Close() }()

	content, err := io.ReadAll(object)
	if err != nil {
		return nil, o.mapErr(name, err, ErrBackendUnavailable)
	}
	return content, nil
}

// Create uploads content under name, replacing any existing object.
func (o *ObjectFS) Create(ctx context.Context, name string, content []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return o.put(ctx, name, content, "text/plain", time.Now())
}

// Update replaces an existing object, carrying its creation time over.
func (o *ObjectFS) Update(ctx context.Context, name string, content []byte) error {
	info, err := o.client.StatObject(ctx, o.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		return o.mapErr(name, err, ErrWrite)
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}
	return o.put(ctx, name, content, contentType, createdAt(info.UserMetadata, info.LastModified))
}

// Delete removes the named object. Object stores treat removing a missing
// key as success, so existence is checked first.
func (o *ObjectFS) Delete(ctx context.Context, name string) error {
	if _, err := o.client.StatObject(ctx, o.bucket, name, minio.StatObjectOptions{}); err != nil {
		return o.mapErr(name, err, ErrWrite)
	}
	if err := o.client.RemoveObject(ctx, o.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: could not delete %s in %s: %v", ErrWrite, name, o.bucket, err)
	}
	logrus.WithFields(logrus.Fields{
		"bucket": o.bucket,
		"key":    name,
	}).Debug("object deleted")
	return nil
}

// AddUploaded uploads a file with its MIME type.
func (o *ObjectFS) AddUploaded(ctx context.Context, name string, content []byte, mimeType string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return o.put(ctx, name, content, mimeType, time.Now())
}

func (o *ObjectFS) put(ctx context.Context, name string, content []byte, contentType string, created time.Time) error {
	_, err := o.client.PutObject(ctx, o.bucket, name, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			createdAtMeta: created.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: could not put %s in bucket %s: %v", ErrWrite, name, o.bucket, err)
	}

	logrus.WithFields(logrus.Fields{
		"bucket": o.bucket,
		"key":    name,
		"size":   humanize.Bytes(uint64(len(content))),
	}).Debug("object uploaded")
	return nil
}

// mapErr turns a missing key into ErrNotFound and anything else into fallback.
func (o *ObjectFS) mapErr(name string, err error, fallback error) error {
	if isNoSuchKey(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return fmt.Errorf("%w: %s in bucket %s: %v", fallback, name, o.bucket, err)
}

func isNoSuchKey(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// createdAt reads the creation time stored in user metadata. Listings
// return the header with its amz prefix, stat calls without it.
func createdAt(meta map[string]string, fallback time.Time) time.Time {
	for _, key := range []string{createdAtMeta, "X-Amz-Meta-" + createdAtMeta} {
		v, ok := meta[key]
		if !ok {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return fallback
}
