//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package report

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/daos-stack/dharness/logging"
)

// ObjectStore opens writers for named objects.
type ObjectStore interface {
	NewWriter(ctx context.Context, object string) io.WriteCloser
}

// GCSStore writes objects to a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore returns a store for bucket. An empty credentials file uses
// application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating storage client")
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// NewWriter implements ObjectStore.
func (gs *GCSStore) NewWriter(ctx context.Context, object string) io.WriteCloser {
	w := gs.client.Bucket(gs.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType(object)
	return w
}

// Close releases the storage client.
func (gs *GCSStore) Close() error {
	return gs.client.Close()
}

func contentType(object string) string {
	switch path.Ext(object) {
	case ".xml":
		return "application/xml"
	case ".json":
		return "application/json"
	default:
		return "text/plain"
	}
}

// Uploader copies local result files to an ObjectStore under a prefix.
type Uploader struct {
	log    logging.Logger
	store  ObjectStore
	prefix string
}

// NewUploader returns an initialized Uploader.
func NewUploader(log logging.Logger, store ObjectStore, prefix string) *Uploader {
	return &Uploader{log: log, store: store, prefix: prefix}
}

// ObjectName returns the object name for a local file.
func (u *Uploader) ObjectName(runID, file string) string {
	return path.Join(u.prefix, runID, filepath.Base(file))
}

// Upload copies each file to the store, stopping at the first failure.
func (u *Uploader) Upload(ctx context.Context, runID string, files ...string) ([]string, error) {
	var objects []string
	for _, file := range files {
		name := u.ObjectName(runID, file)
		if err := u.uploadOne(ctx, file, name); err != nil {
			return objects, errors.Wrapf(err, "uploading %s", file)
		}
		u.log.Debugf("uploaded %s to %s", file, name)
		objects = append(objects, name)
	}
	return objects, nil
}

func (u *Uploader) uploadOne(ctx context.Context, file, name string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	w := u.store.NewWriter(ctx, name)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
