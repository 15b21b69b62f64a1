// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package typesplit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var (
	// ErrClosed is returned from methods of a closed Registry.
	ErrClosed = errors.New("partition registry closed")

	// ErrInvalidKey is returned for partition names that cannot be used as
	// a file name.
	ErrInvalidKey = errors.New("invalid partition name")
)

const (
	partitionExt     = ".json"
	compressedExt    = ".gz"
	writeBufferBytes = 64 * 1024
)

// Partition is an open output file holding the action/document pairs routed
// to one partition name.
type Partition struct {
	key    string
	path   string
	file   *os.File
	bufw   *bufio.Writer
	gzipw  *gzip.Writer
	writer io.Writer

	records int64
	bytes   int64
}

// Key returns the partition name.
func (p *Partition) Key() string {
	return p.key
}

// Path returns the path of the partition file.
func (p *Partition) Path() string {
	return p.path
}

// Records returns the number of action/document pairs appended.
func (p *Partition) Records() int64 {
	return p.records
}

// Bytes returns the number of uncompressed bytes appended.
func (p *Partition) Bytes() int64 {
	return p.bytes
}

// Append writes header and body, each followed by a newline.
func (p *Partition) Append(header, body []byte) (int, error) {
	var n int
	for _, line := range [][]byte{header, body} {
		written, err := p.writer.Write(line)
		n += written
		if err != nil {
			return n, fmt.Errorf("failed to write to %s: %w", p.path, err)
		}
		written, err = p.writer.Write([]byte("\n"))
		n += written
		if err != nil {
			return n, fmt.Errorf("failed to write newline to %s: %w", p.path, err)
		}
	}
	p.records++
	p.bytes += int64(n)
	return n, nil
}

func (p *Partition) close() error {
	var errs []error
	if p.gzipw != nil {
		if err := p.gzipw.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed closing the gzip writer: %w", err))
		}
	}
	if err := p.bufw.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush %s: %w", p.path, err))
	}
	if err := p.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close %s: %w", p.path, err))
	}
	return errors.Join(errs...)
}

// Registry maps partition names to open partitions. Partitions are created
// on first use and stay open until Close.
//
// A Registry is not safe for concurrent use.
type Registry struct {
	config     Config
	metrics    *metrics
	partitions map[string]*Partition
	closed     bool
}

// NewRegistry returns an empty Registry writing partitions to cfg.Dir.
func NewRegistry(cfg Config) (*Registry, error) {
	cfg = DefaultConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ms, err := newMetrics(cfg)
	if err != nil {
		return nil, err
	}
	return newRegistry(cfg, ms), nil
}

func newRegistry(cfg Config, ms *metrics) *Registry {
	return &Registry{
		config:     cfg,
		metrics:    ms,
		partitions: make(map[string]*Partition),
	}
}

// Get returns the partition for key, creating its file if this is the first
// time key is seen. An existing file of the same name is truncated.
func (r *Registry) Get(key string) (*Partition, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if p, ok := r.partitions[key]; ok {
		return p, nil
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	name := key + partitionExt
	if r.config.CompressionLevel != gzip.NoCompression {
		name += compressedExt
	}
	path := filepath.Join(r.config.Dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create partition %q: %w", key, err)
	}

	p := &Partition{
		key:  key,
		path: path,
		file: f,
		bufw: bufio.NewWriterSize(f, writeBufferBytes),
	}
	p.writer = p.bufw
	if r.config.CompressionLevel != gzip.NoCompression {
		// No error returned if the compression level is valid.
		p.gzipw, _ = gzip.NewWriterLevel(p.bufw, r.config.CompressionLevel)
		p.writer = p.gzipw
	}
	r.partitions[key] = p

	r.metrics.partitionsCreated.Add(context.Background(), 1,
		metric.WithAttributeSet(r.config.MetricAttributes),
		metric.WithAttributes(attribute.String("partition", key)),
	)
	r.config.Logger.Debug("created partition", zap.String("partition", key), zap.String("path", path))
	return p, nil
}

// Len returns the number of partitions.
func (r *Registry) Len() int {
	return len(r.partitions)
}

// Keys returns the partition names in ascending order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.partitions))
	for key := range r.partitions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Close flushes and closes every partition in ascending name order. All
// partitions are closed even if some fail; the failures are joined.
//
// Close is idempotent; Get returns ErrClosed afterwards.
func (r *Registry) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, key := range r.Keys() {
		p := r.partitions[key]
		if err := p.close(); err != nil {
			errs = append(errs, fmt.Errorf("partition %q: %w", key, err))
			continue
		}
		r.config.Logger.Debug("closed partition",
			zap.String("partition", key),
			zap.Int64("records", p.records),
			zap.Int64("bytes", p.bytes),
		)
	}
	if len(errs) != 0 {
		return fmt.Errorf("failed to close partitions: %w", errors.Join(errs...))
	}
	return nil
}

func validateKey(key string) error {
	switch {
	case key == "", key == ".", key == "..":
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	case strings.ContainsAny(key, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidKey, key)
	}
	return nil
}
