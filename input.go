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
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Input formats reported by Input.Format.
const (
	FormatPlain = "plain"
	FormatGzip  = "gzip"
	FormatZstd  = "zstd"
	FormatLZ4   = "lz4"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Input is an opened bulk export.
type Input struct {
	io.Reader
	format  string
	closers []io.Closer
}

// Format returns the compression format detected when the input was opened.
func (in *Input) Format() string {
	return in.format
}

// Close releases the decompressor, if any, and the underlying file.
func (in *Input) Close() error {
	var errs []error
	for _, c := range in.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenInput opens the file at path for reading. gzip, zstd and lz4 frame
// compressed files are recognised by their magic bytes and decompressed
// transparently.
func OpenInput(path string) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	in, err := newInput(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open input %s: %w", path, err)
	}
	in.closers = append(in.closers, f)
	return in, nil
}

func newInput(r io.Reader) (*Input, error) {
	br := bufio.NewReaderSize(r, decoderBufferSize)
	magic, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return &Input{Reader: zr, format: FormatGzip, closers: []io.Closer{zr}}, nil
	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		rc := zr.IOReadCloser()
		return &Input{Reader: rc, format: FormatZstd, closers: []io.Closer{rc}}, nil
	case bytes.HasPrefix(magic, lz4Magic):
		return &Input{Reader: lz4.NewReader(br), format: FormatLZ4}, nil
	default:
		return &Input{Reader: br, format: FormatPlain}, nil
	}
}
