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
	"context"
	"errors"
	"fmt"
	"io"

	"go.elastic.co/fastjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrMissingBody is returned when the input ends right after an action
// header.
var ErrMissingBody = errors.New("missing document body")

// Stats holds the outcome of a conversion run.
type Stats struct {
	// Pairs is the number of action/document pairs written.
	Pairs int64

	// Dropped is the number of values skipped because they were not an
	// index action.
	Dropped int64

	// Partitions is the number of partition files created.
	Partitions int

	// BytesWritten is the number of uncompressed bytes written.
	BytesWritten int64
}

// Converter splits bulk exports into one partition per index and type.
//
// Every call to Convert starts with an empty set of partitions, a Converter
// may be reused for several inputs as long as they do not share partition
// names, since partition files are truncated when first opened by a run.
type Converter struct {
	config  Config
	metrics *metrics

	tracer trace.Tracer
}

// New returns a Converter configured with cfg.
func New(cfg Config) (*Converter, error) {
	cfg = DefaultConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ms, err := newMetrics(cfg)
	if err != nil {
		return nil, err
	}
	c := &Converter{
		config:  cfg,
		metrics: ms,
	}
	if cfg.TracerProvider != nil {
		c.tracer = cfg.TracerProvider.Tracer("github.com/elastic/go-typesplit.converter")
	}
	return c, nil
}

// ConvertFile converts the bulk export stored at path. Compressed files are
// detected by their content, see OpenInput.
func (c *Converter) ConvertFile(ctx context.Context, path string) (Stats, error) {
	r, err := OpenInput(path)
	if err != nil {
		return Stats{}, err
	}
	defer r.Close()
	return c.Convert(ctx, r)
}

// Convert reads action/document pairs from r and appends each pair to the
// partition named after the action's index and type.
//
// Values that are not an index action are skipped. Every partition opened
// during the run is flushed and closed before Convert returns, whether or
// not the run succeeded.
func (c *Converter) Convert(ctx context.Context, r io.Reader) (stats Stats, err error) {
	logger := c.config.Logger
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "typesplit.convert")
		defer func() {
			span.SetAttributes(
				attribute.Int64("pairs", stats.Pairs),
				attribute.Int64("dropped", stats.Dropped),
				attribute.Int("partitions", stats.Partitions),
			)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "conversion failed")
			}
			span.End()
		}()

		// Add trace IDs to logger, to associate any partition
		// logs below with the trace.
		logger = logger.With(
			zap.String("traceId", span.SpanContext().TraceID().String()),
			zap.String("spanId", span.SpanContext().SpanID().String()),
		)
	}

	cfg := c.config
	cfg.Logger = logger
	registry := newRegistry(cfg, c.metrics)
	defer func() {
		stats.Partitions = registry.Len()
		if closeErr := registry.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	err = c.convert(ctx, NewDecoder(r), registry, &stats, logger)
	return stats, err
}

type state int

const (
	awaitHeader state = iota
	awaitBody
)

func (c *Converter) convert(
	ctx context.Context,
	dec *Decoder,
	registry *Registry,
	stats *Stats,
	logger *zap.Logger,
) error {
	attrs := metric.WithAttributeSet(c.config.MetricAttributes)

	var (
		st     = awaitHeader
		header actionHeader
		key    string
		jsonw  fastjson.Writer
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := dec.Next()
		if err == io.EOF {
			if st == awaitBody {
				return fmt.Errorf("%w for partition %q", ErrMissingBody, key)
			}
			return nil
		}
		if err != nil {
			return err
		}

		switch st {
		case awaitHeader:
			h, ok, err := parseHeader(value)
			if err != nil {
				return fmt.Errorf("value %d: %w", dec.Values(), err)
			}
			if !ok {
				stats.Dropped++
				c.metrics.valuesDropped.Add(ctx, 1, attrs)
				logger.Debug("dropped value without index action", zap.Int("value", dec.Values()))
				continue
			}
			header, key = h, h.key(c.config.Placeholder)
			st = awaitBody
		case awaitBody:
			p, err := registry.Get(key)
			if err != nil {
				return err
			}
			jsonw.Reset()
			header.writeTo(&jsonw, key)
			n, err := p.Append(jsonw.Bytes(), value)
			if err != nil {
				return err
			}
			stats.Pairs++
			stats.BytesWritten += int64(n)
			partition := metric.WithAttributes(attribute.String("partition", key))
			c.metrics.pairsConverted.Add(ctx, 1, attrs, partition)
			c.metrics.bytesWritten.Add(ctx, int64(n), attrs, partition)
			st = awaitHeader
		}
	}
}
