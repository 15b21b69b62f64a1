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

// Package typesplittest provides helpers for testing code that produces or
// consumes typesplit partitions.
package typesplittest

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/elastic/go-typesplit"
)

// Action returns a legacy bulk index action. Empty index or typ and a nil id
// are left out of the action.
func Action(index, typ string, id any) map[string]any {
	meta := make(map[string]any)
	if index != "" {
		meta["_index"] = index
	}
	if typ != "" {
		meta["_type"] = typ
	}
	if id != nil {
		meta["_id"] = id
	}
	return map[string]any{"index": meta}
}

// NewBulkInput returns a reader producing values as ndjson, one JSON
// encoded value per line. Use json.RawMessage to control the exact
// encoding of a value.
func NewBulkInput(values ...any) io.Reader {
	readers := make([]io.Reader, len(values))
	for i, v := range values {
		readers[i] = esutil.NewJSONReader(v)
	}
	return io.MultiReader(readers...)
}

// Record is an action/document pair read back from a partition file.
type Record struct {
	Action   json.RawMessage
	Document json.RawMessage
}

// DecodeDocument decodes the record's document.
func (r Record) DecodeDocument(t testing.TB) any {
	var v any
	require.NoError(t, json.Unmarshal(r.Document, &v))
	return v
}

// ReadPartition reads the partition file at path, which must consist of
// action/document line pairs. Files ending in ".gz" are decompressed.
func ReadPartition(t testing.TB, path string) []Record {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var body io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		r, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer r.Close()
		body = r
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var records []Record
	for scanner.Scan() {
		action := append([]byte{}, scanner.Bytes()...)
		require.True(t, json.Valid(action), "invalid action JSON: %s", action)
		require.True(t, scanner.Scan(), "expected document after %s", action)
		doc := append([]byte{}, scanner.Bytes()...)
		require.True(t, json.Valid(doc), "invalid document JSON: %s", doc)
		records = append(records, Record{Action: action, Document: doc})
	}
	require.NoError(t, scanner.Err())
	return records
}

// ReadPartitions reads every partition file in dir, keyed by partition name.
func ReadPartitions(t testing.TB, dir string) map[string][]Record {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := make(map[string][]Record)
	for _, entry := range entries {
		name := entry.Name()
		key := strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".json")
		if entry.IsDir() || key == name {
			continue
		}
		out[key] = ReadPartition(t, filepath.Join(dir, name))
	}
	return out
}

// PartitionNames returns the sorted names of the partition files in dir.
func PartitionNames(t testing.TB, dir string) []string {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Simulate runs the conversion over decoded JSON values in memory and
// returns the documents routed to each partition, in input order. Only
// string `_index` and `_type` values are considered present.
//
// Simulate returns typesplit.ErrMissingBody if the last action has no
// document.
func Simulate(values []any, placeholder string) (map[string][]any, error) {
	out := make(map[string][]any)
	for i := 0; i < len(values); i++ {
		obj, ok := values[i].(map[string]any)
		if !ok {
			continue
		}
		action, ok := obj["index"]
		if !ok {
			continue
		}
		meta, _ := action.(map[string]any)
		index, _ := meta["_index"].(string)
		typ, _ := meta["_type"].(string)
		key := typesplit.PartitionKey(index, typ, placeholder)

		i++
		if i == len(values) {
			return out, typesplit.ErrMissingBody
		}
		out[key] = append(out[key], values[i])
	}
	return out, nil
}
