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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	pairsConverted    metric.Int64Counter
	valuesDropped     metric.Int64Counter
	partitionsCreated metric.Int64Counter
	bytesWritten      metric.Int64Counter
}

type counterMetric struct {
	name        string
	description string
	unit        string
	p           *metric.Int64Counter
}

func newMetrics(cfg Config) (*metrics, error) {
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	meter := cfg.MeterProvider.Meter("github.com/elastic/go-typesplit")
	ms := metrics{}
	counters := []counterMetric{
		{
			name:        "typesplit.pairs.converted",
			description: "The number of action and document pairs written to a partition.",
			p:           &ms.pairsConverted,
		},
		{
			name:        "typesplit.values.dropped",
			description: "The number of values skipped because they are not an index action.",
			p:           &ms.valuesDropped,
		},
		{
			name:        "typesplit.partitions.created",
			description: "The number of partition files created.",
			p:           &ms.partitionsCreated,
		},
		{
			name:        "typesplit.written.bytes",
			description: "The number of uncompressed bytes written to partition files.",
			unit:        "by",
			p:           &ms.bytesWritten,
		},
	}
	for _, m := range counters {
		if err := newInt64Counter(meter, m); err != nil {
			return &ms, err
		}
	}
	return &ms, nil
}

func newInt64Counter(meter metric.Meter, c counterMetric) error {
	unit := c.unit
	if unit == "" {
		unit = "1"
	}
	m, err := meter.Int64Counter(
		c.name,
		metric.WithUnit(unit),
		metric.WithDescription(c.description),
	)

	if err != nil {
		return fmt.Errorf(
			"failed creating %s metric: %w", c.name, err,
		)
	}
	*c.p = m
	return nil
}
