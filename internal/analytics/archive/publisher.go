// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package archive uploads the compressed report artifacts to S3-compatible
// object storage and verifies byte-size parity between the staged file and
// the stored object. A size mismatch is a data-integrity failure, not a
// retryable hiccup.
package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// ObjectStore abstracts the minimal object-storage surface the publisher
// needs. Implementations may wrap github.com/minio/minio-go/v7 or any
// S3-compatible client.
type ObjectStore interface {
	// Put uploads the local file under key and returns the stored size.
	Put(ctx context.Context, key, localPath string) (int64, error)
	// Size returns the stored object's byte size.
	Size(ctx context.Context, key string) (int64, error)
}

// Publisher uploads staged archives under a deterministic key scheme:
// <prefix>/<base file name>.
type Publisher struct {
	store  ObjectStore
	prefix string
}

func NewPublisher(store ObjectStore, prefix string) *Publisher {
	return &Publisher{store: store, prefix: prefix}
}

// Key returns the object key for a staged archive path.
func (p *Publisher) Key(localPath string) string {
	return path.Join(p.prefix, filepath.Base(localPath))
}

// Upload publishes each local archive and verifies that the stored object's
// byte size equals the staged file's byte size.
func (p *Publisher) Upload(ctx context.Context, localPaths []string) error {
	for _, localPath := range localPaths {
		info, err := os.Stat(localPath)
		if err != nil {
			return fmt.Errorf("stat staged archive %s: %w", localPath, err)
		}
		key := p.Key(localPath)
		if _, err := p.store.Put(ctx, key, localPath); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		stored, err := p.store.Size(ctx, key)
		if err != nil {
			return fmt.Errorf("stat uploaded %s: %w", key, err)
		}
		if stored != info.Size() {
			return fmt.Errorf("size parity violation for %s: staged %d bytes, stored %d bytes", key, info.Size(), stored)
		}
	}
	return nil
}
