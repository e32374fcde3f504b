/*
 * Copyright 2018 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sqlite

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DSN is a sqlite connection string: a file name plus query parameters.
type DSN struct {
	filename string
	params   map[string]string
}

// ParseDSN parses "[file:]name[?k=v&...]".
func ParseDSN(s string) (dsn *DSN, err error) {
	parts := strings.SplitN(s, "?", 2)
	dsn = &DSN{
		filename: strings.TrimPrefix(parts[0], "file:"),
		params:   make(map[string]string),
	}
	if dsn.filename == "" {
		return nil, errors.New("sqlite dsn has no file name")
	}
	if len(parts) < 2 || parts[1] == "" {
		return
	}
	for _, kv := range strings.Split(parts[1], "&") {
		p := strings.SplitN(kv, "=", 2)
		if len(p) != 2 || p[0] == "" {
			return nil, errors.Errorf("unrecognized dsn parameter: %s", kv)
		}
		dsn.params[p[0]] = p[1]
	}
	return
}

// FileName returns the database file name.
func (dsn *DSN) FileName() string { return dsn.filename }

// Set sets a parameter, an empty value removes it.
func (dsn *DSN) Set(key, value string) {
	if value == "" {
		delete(dsn.params, key)
		return
	}
	dsn.params[key] = value
}

// Get returns a parameter.
func (dsn *DSN) Get(key string) (value string, ok bool) {
	value, ok = dsn.params[key]
	return
}

// Clone returns a deep copy.
func (dsn *DSN) Clone() *DSN {
	c := &DSN{
		filename: dsn.filename,
		params:   make(map[string]string, len(dsn.params)),
	}
	for k, v := range dsn.params {
		c.params[k] = v
	}
	return c
}

// Format renders the connection string with parameters in key order.
func (dsn *DSN) Format() string {
	if len(dsn.params) == 0 {
		return "file:" + dsn.filename
	}
	keys := make([]string, 0, len(dsn.params))
	for k := range dsn.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make([]string, 0, len(keys))
	for _, k := range keys {
		params = append(params, k+"="+dsn.params[k])
	}
	return "file:" + dsn.filename + "?" + strings.Join(params, "&")
}
