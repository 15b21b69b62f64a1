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

// Package typesplit converts bulk ndjson exports taken from Elasticsearch
// versions that allow multiple mapping types per index into input suitable
// for versions without mapping types.
//
// Each `{"index":{...}}` action and the document that follows it are routed
// to a partition named after the action's `_index` and `_type`, joined by a
// dash. Inside the partition the action's `_index` is replaced with that name
// and `_type` is removed, so the files can be replayed against the _bulk API
// of a typeless cluster one index at a time.
//
// The conversion is a single forward pass over the input and never holds more
// than one action/document pair in memory.
package typesplit
