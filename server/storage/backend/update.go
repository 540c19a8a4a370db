// Copyright 2026 The etcd Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"go.etcd.io/oplogapply/server/errors"
)

func isModifierUpdate(update bson.Raw) bool {
	elems, err := update.Elements()
	if err != nil || len(elems) == 0 {
		return false
	}
	return strings.HasPrefix(elems[0].Key(), "$")
}

func toD(doc bson.Raw) (bson.D, error) {
	var d bson.D
	if err := bson.Unmarshal(doc, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func setField(d bson.D, key string, v any) bson.D {
	for i := range d {
		if d[i].Key == key {
			d[i].Value = v
			return d
		}
	}
	return append(d, bson.E{Key: key, Value: v})
}

func unsetField(d bson.D, key string) bson.D {
	for i := range d {
		if d[i].Key == key {
			return append(d[:i], d[i+1:]...)
		}
	}
	return d
}

// applyUpdate applies an update document to base. Modifier updates support
// top level $set and $unset; anything else replaces the document while
// keeping its _id.
func applyUpdate(base bson.D, id bson.RawValue, update bson.Raw) (bson.D, error) {
	if !isModifierUpdate(update) {
		repl, err := toD(update)
		if err != nil {
			return nil, err
		}
		repl = unsetField(repl, "_id")
		return append(bson.D{{Key: "_id", Value: id}}, repl...), nil
	}

	elems, err := update.Elements()
	if err != nil {
		return nil, err
	}
	for _, el := range elems {
		op := el.Key()
		if op == "$v" {
			continue
		}
		if op != "$set" && op != "$unset" {
			return nil, fmt.Errorf("%w: unsupported update modifier %s", errors.ErrBadOplogEntry, op)
		}
		fields, ok := el.Value().DocumentOK()
		if !ok {
			return nil, fmt.Errorf("%w: %s takes a document", errors.ErrBadOplogEntry, op)
		}
		fes, err := fields.Elements()
		if err != nil {
			return nil, err
		}
		for _, fe := range fes {
			key := fe.Key()
			if strings.Contains(key, ".") {
				return nil, fmt.Errorf("%w: nested field path %q", errors.ErrBadOplogEntry, key)
			}
			if key == "_id" {
				return nil, fmt.Errorf("%w: _id is immutable", errors.ErrBadOplogEntry)
			}
			if op == "$set" {
				base = setField(base, key, fe.Value())
			} else {
				base = unsetField(base, key)
			}
		}
	}
	return base, nil
}
