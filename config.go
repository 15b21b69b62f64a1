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
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultPlaceholder is used in place of a missing `_index` or `_type` when
// building partition names.
const DefaultPlaceholder = "_na_"

// Config holds configuration for Converter.
type Config struct {
	// Logger holds an optional Logger to use for logging conversion progress.
	//
	// Dropped values and new partitions are logged at debug level, so a run
	// over a large export only produces a handful of info lines.
	//
	// If Logger is nil, logging will be disabled.
	Logger *zap.Logger

	// Dir holds the directory partition files are written to.
	//
	// If Dir is empty, the current working directory will be used.
	Dir string

	// Placeholder holds the value substituted for a missing `_index` or
	// `_type` in an action header.
	//
	// If Placeholder is empty, DefaultPlaceholder will be used.
	Placeholder string

	// CompressionLevel holds the gzip compression level of partition files,
	// from 0 (gzip.NoCompression) to 9 (gzip.BestCompression). The special
	// value -1 (gzip.DefaultCompression) selects the default compression level.
	//
	// Compressed partitions get a ".gz" suffix appended to their file name.
	CompressionLevel int

	// MeterProvider holds the OTel MeterProvider to be used to create and
	// record conversion metrics.
	//
	// If unset, the global OTel MeterProvider will be used, if that is unset,
	// no metrics will be recorded.
	MeterProvider metric.MeterProvider

	// MetricAttributes holds any extra attributes to set in the recorded
	// metrics.
	MetricAttributes attribute.Set

	// TracerProvider holds an optional otel TracerProvider for tracing
	// conversion runs.
	//
	// If TracerProvider is nil, runs will not be traced.
	TracerProvider trace.TracerProvider
}

// DefaultConfig returns a copy of cfg with any zero values set to their
// defaults.
func DefaultConfig(cfg Config) Config {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.Placeholder == "" {
		cfg.Placeholder = DefaultPlaceholder
	}
	return cfg
}

// Validate checks the configuration values.
func (cfg Config) Validate() error {
	if cfg.CompressionLevel < -1 || cfg.CompressionLevel > 9 {
		return fmt.Errorf(
			"expected CompressionLevel in range [-1,9], got %d",
			cfg.CompressionLevel,
		)
	}
	if cfg.Placeholder != "" {
		if err := validateKey(cfg.Placeholder); err != nil {
			return fmt.Errorf("invalid placeholder: %w", err)
		}
	}
	return nil
}
