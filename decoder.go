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

	jsoniter "github.com/json-iterator/go"
)

// ErrMalformedJSON is returned when the input holds something other than a
// sequence of JSON values.
var ErrMalformedJSON = errors.New("malformed JSON")

// jsonAPI leaves HTML characters alone, documents are copied as they are.
var jsonAPI = jsoniter.Config{EscapeHTML: false}.Froze()

const decoderBufferSize = 64 * 1024

// Decoder reads a sequence of JSON values from an io.Reader.
//
// Values may be separated by any JSON whitespace, so both strict ndjson and
// pretty-printed exports are accepted. Every value is validated and returned
// in compact form with its object key order, number literals and string
// contents preserved.
//
// A Decoder makes a single forward pass and cannot be restarted.
type Decoder struct {
	src    *recordingReader
	iter   *jsoniter.Iterator
	stream *jsoniter.Stream
	values int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	src := &recordingReader{r: r}
	return &Decoder{
		src:    src,
		iter:   jsoniter.Parse(jsonAPI, src, decoderBufferSize),
		stream: jsoniter.NewStream(jsonAPI, nil, 512),
	}
}

// Next returns the next value in compact form. The returned slice is owned by
// the caller.
//
// Next returns io.EOF once the input is exhausted. Input that ends in the
// middle of a value yields an error wrapping io.ErrUnexpectedEOF.
func (d *Decoder) Next() ([]byte, error) {
	next := d.iter.WhatIsNext()
	if next == jsoniter.InvalidValue {
		if err := d.readErr(); err != nil {
			return nil, err
		}
		if d.iter.Error == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: value %d: unexpected character", ErrMalformedJSON, d.values+1)
	}

	d.values++
	d.stream.Reset(nil)
	transcode(d.iter, d.stream)

	if err := d.readErr(); err != nil {
		return nil, err
	}
	switch err := d.iter.Error; {
	case err == nil:
	case err == io.EOF && next == jsoniter.NumberValue:
		// A number is only terminated by the byte after it, so a
		// trailing number at the very end of the input is complete.
	case d.src.eof && next != jsoniter.NumberValue:
		return nil, fmt.Errorf("value %d: %w", d.values, io.ErrUnexpectedEOF)
	default:
		return nil, fmt.Errorf("%w: value %d: %v", ErrMalformedJSON, d.values, err)
	}
	return append([]byte(nil), d.stream.Buffer()...), nil
}

// Values returns the number of values read so far.
func (d *Decoder) Values() int {
	return d.values
}

func (d *Decoder) readErr() error {
	if d.src.err != nil {
		return fmt.Errorf("failed to read input: %w", d.src.err)
	}
	return nil
}

// transcode copies the value at the head of iter into stream, dropping
// insignificant whitespace. Errors are left in iter.Error.
func transcode(iter *jsoniter.Iterator, stream *jsoniter.Stream) {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		stream.WriteObjectStart()
		first := true
		iter.ReadObjectCB(func(iter *jsoniter.Iterator, field string) bool {
			if !first {
				stream.WriteMore()
			}
			first = false
			stream.WriteObjectField(field)
			transcode(iter, stream)
			return iter.Error == nil
		})
		stream.WriteObjectEnd()
	case jsoniter.ArrayValue:
		stream.WriteArrayStart()
		first := true
		iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
			if !first {
				stream.WriteMore()
			}
			first = false
			transcode(iter, stream)
			return iter.Error == nil
		})
		stream.WriteArrayEnd()
	case jsoniter.StringValue:
		stream.WriteString(iter.ReadString())
	case jsoniter.NumberValue:
		n := string(iter.ReadNumber())
		if iter.Error != nil && iter.Error != io.EOF {
			return
		}
		if !validNumber(n) {
			iter.ReportError("transcode", "invalid number "+n)
			return
		}
		stream.WriteRaw(n)
	case jsoniter.BoolValue:
		stream.WriteBool(iter.ReadBool())
	case jsoniter.NilValue:
		iter.ReadNil()
		stream.WriteNil()
	default:
		iter.ReportError("transcode", "expected a JSON value")
	}
}

// validNumber reports whether s follows the JSON number grammar. The
// iterator accepts any run of number characters, e.g. "1.2.3" or "+1".
func validNumber(s string) bool {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	switch {
	case i < len(s) && s[i] == '0':
		i++
	case i < len(s) && s[i] >= '1' && s[i] <= '9':
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	default:
		return false
	}
	if i < len(s) && s[i] == '.' {
		i++
		if i == len(s) || !isDigit(s[i]) {
			return false
		}
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		if i == len(s) || !isDigit(s[i]) {
			return false
		}
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	return i == len(s)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// recordingReader keeps the first non-EOF error of the underlying reader so
// that I/O failures are not reported as malformed JSON. eof is set once the
// reader has nothing more to give, which tells truncated input apart from
// malformed input.
type recordingReader struct {
	r   io.Reader
	err error
	eof bool
}

func (r *recordingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	switch {
	case err == io.EOF && n == 0:
		r.eof = true
	case err != nil && err != io.EOF && r.err == nil:
		r.err = err
	}
	return n, err
}
