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
	"errors"
	"fmt"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"go.elastic.co/fastjson"
)

// ErrMalformedHeader is returned for an "index" action whose metadata cannot
// be turned into a partition name.
var ErrMalformedHeader = errors.New("malformed action header")

const (
	actionField = "index"
	indexField  = "_index"
	typeField   = "_type"
)

type rawField struct {
	name  string
	value []byte
}

// actionHeader is a decoded `{"index":{...}}` bulk action line. Fields keep
// their input order so the rewritten header differs from the input only
// in `_index` and `_type`.
type actionHeader struct {
	fields []rawField
	action int
	meta   []rawField

	index, typ       string
	indexFieldExists bool
}

// parseHeader decodes raw as an action header. ok is false when raw is not
// an object or has no "index" field; such values are not headers.
func parseHeader(raw []byte) (h actionHeader, ok bool, err error) {
	iter := jsonAPI.BorrowIterator(raw)
	defer jsonAPI.ReturnIterator(iter)

	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return h, false, nil
	}
	h.action = -1
	iter.ReadObjectCB(func(iter *jsoniter.Iterator, name string) bool {
		if name != actionField {
			h.fields = append(h.fields, rawField{name: name, value: iter.SkipAndReturnBytes()})
			return true
		}
		if h.action >= 0 {
			err = fmt.Errorf("%w: duplicate %q field", ErrMalformedHeader, actionField)
			return false
		}
		if iter.WhatIsNext() != jsoniter.ObjectValue {
			err = fmt.Errorf("%w: %q is not an object", ErrMalformedHeader, actionField)
			return false
		}
		h.action = len(h.fields)
		h.fields = append(h.fields, rawField{name: name})
		iter.ReadObjectCB(func(iter *jsoniter.Iterator, name string) bool {
			switch name {
			case indexField:
				h.indexFieldExists = true
				h.meta = append(h.meta, rawField{name: name})
				h.index, err = readName(iter, name)
			case typeField:
				h.typ, err = readName(iter, name)
			default:
				h.meta = append(h.meta, rawField{name: name, value: iter.SkipAndReturnBytes()})
			}
			return err == nil
		})
		return err == nil
	})
	if err != nil {
		return actionHeader{}, false, err
	}
	if iter.Error != nil && iter.Error != io.EOF {
		return actionHeader{}, false, fmt.Errorf("%w: %v", ErrMalformedHeader, iter.Error)
	}
	return h, h.action >= 0, nil
}

// readName reads an `_index` or `_type` value. Scalars are rendered as their
// literal text, null reads as an empty name.
func readName(iter *jsoniter.Iterator, field string) (string, error) {
	switch iter.WhatIsNext() {
	case jsoniter.StringValue:
		return iter.ReadString(), nil
	case jsoniter.NumberValue:
		return string(iter.ReadNumber()), nil
	case jsoniter.BoolValue:
		return strconv.FormatBool(iter.ReadBool()), nil
	case jsoniter.NilValue:
		iter.ReadNil()
		return "", nil
	default:
		return "", fmt.Errorf("%w: %q must be a scalar", ErrMalformedHeader, field)
	}
}

// key returns the partition name of the header.
func (h *actionHeader) key(placeholder string) string {
	return PartitionKey(h.index, h.typ, placeholder)
}

// PartitionKey joins an index and a type name into a partition name. An
// empty name, which includes a missing or null field, is replaced with
// placeholder.
func PartitionKey(index, typ, placeholder string) string {
	if index == "" {
		index = placeholder
	}
	if typ == "" {
		typ = placeholder
	}
	return index + "-" + typ
}

// writeTo renders the header with `_index` set to key and `_type` removed.
// `_index` keeps its position, or is appended if the action had none.
func (h *actionHeader) writeTo(w *fastjson.Writer, key string) {
	w.RawByte('{')
	for i, f := range h.fields {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(f.name)
		w.RawByte(':')
		if i != h.action {
			w.RawBytes(f.value)
			continue
		}
		w.RawByte('{')
		for j, m := range h.meta {
			if j > 0 {
				w.RawByte(',')
			}
			w.String(m.name)
			w.RawByte(':')
			if m.name == indexField {
				w.String(key)
			} else {
				w.RawBytes(m.value)
			}
		}
		if !h.indexFieldExists {
			if len(h.meta) > 0 {
				w.RawByte(',')
			}
			w.RawString(`"_index":`)
			w.String(key)
		}
		w.RawByte('}')
	}
	w.RawByte('}')
}
