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

package writer

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/text/collate"
)

// Canonical type tags. Values that compare equal must share a tag, so all
// numeric types hash under one tag and null under the same tag as undefined.
const (
	tagMissing byte = iota
	tagNull
	tagNumber
	tagString
	tagObject
	tagArray
	tagBool
	tagOther
)

// hashNamespace reduces the 64-bit namespace hash to 32 bits so it can seed
// the murmur3 combination. Only the low bits matter for the final modulo.
func hashNamespace(ns string) uint32 {
	return uint32(xxhash.Sum64String(ns))
}

// combineHash mixes h into seed. The combination is order sensitive.
func combineHash(seed uint32, h uint64) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], h)
	return murmur3.Sum32WithSeed(buf[:], seed)
}

// elementHasher hashes BSON values ignoring field names, so that
// {a: 1} and {b: 1} hash alike, and comparing strings through the collator.
type elementHasher struct {
	collator *collate.Collator
	buf      collate.Buffer
	scratch  [9]byte
}

func newElementHasher(c *collate.Collator) *elementHasher {
	return &elementHasher{collator: c}
}

func (h *elementHasher) hash(v bson.RawValue) uint64 {
	d := xxhash.New()
	h.write(d, v)
	return d.Sum64()
}

func (h *elementHasher) write(d *xxhash.Digest, v bson.RawValue) {
	switch v.Type {
	case 0:
		d.Write([]byte{tagMissing})
	case bson.TypeNull, bson.TypeUndefined:
		d.Write([]byte{tagNull})
	case bson.TypeInt32:
		h.writeInt(d, int64(v.Int32()))
	case bson.TypeInt64:
		h.writeInt(d, v.Int64())
	case bson.TypeDouble:
		f := v.Double()
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			h.writeInt(d, int64(f))
			return
		}
		if math.IsNaN(f) {
			f = math.NaN()
		}
		h.scratch[0] = tagNumber
		binary.LittleEndian.PutUint64(h.scratch[1:], math.Float64bits(f))
		d.Write(h.scratch[:])
	case bson.TypeString, bson.TypeSymbol:
		d.Write([]byte{tagString})
		var s string
		if v.Type == bson.TypeString {
			s = v.StringValue()
		} else {
			s = v.Symbol()
		}
		if h.collator != nil {
			d.Write(h.collator.KeyFromString(&h.buf, s))
			h.buf.Reset()
			return
		}
		d.WriteString(s)
	case bson.TypeEmbeddedDocument:
		d.Write([]byte{tagObject})
		elems, err := v.Document().Elements()
		if err != nil {
			d.Write(v.Value)
			return
		}
		for _, e := range elems {
			h.write(d, e.Value())
		}
	case bson.TypeArray:
		d.Write([]byte{tagArray})
		vals, err := v.Array().Values()
		if err != nil {
			d.Write(v.Value)
			return
		}
		for _, e := range vals {
			h.write(d, e)
		}
	case bson.TypeDecimal128:
		if i, ok := decimalToInt(v.Decimal128()); ok {
			h.writeInt(d, i)
			return
		}
		d.Write([]byte{tagOther, byte(v.Type)})
		d.Write(v.Value)
	case bson.TypeBoolean:
		b := byte(0)
		if v.Boolean() {
			b = 1
		}
		d.Write([]byte{tagBool, b})
	default:
		d.Write([]byte{tagOther, byte(v.Type)})
		d.Write(v.Value)
	}
}

// decimalToInt returns the value of an integral decimal that fits in an
// int64, so that NumberDecimal("1.0") hashes like 1.
func decimalToInt(dec bson.Decimal128) (int64, bool) {
	coef, exp, err := dec.BigInt()
	if err != nil {
		return 0, false
	}
	if coef.Sign() == 0 {
		return 0, true
	}
	ten := big.NewInt(10)
	rem := new(big.Int)
	for ; exp < 0; exp++ {
		coef.QuoRem(coef, ten, rem)
		if rem.Sign() != 0 {
			return 0, false
		}
	}
	if exp > 18 {
		return 0, false
	}
	if exp > 0 {
		coef.Mul(coef, new(big.Int).Exp(ten, big.NewInt(int64(exp)), nil))
	}
	if !coef.IsInt64() {
		return 0, false
	}
	return coef.Int64(), true
}

func (h *elementHasher) writeInt(d *xxhash.Digest, i int64) {
	h.scratch[0] = tagNumber
	binary.LittleEndian.PutUint64(h.scratch[1:], uint64(i))
	d.Write(h.scratch[:])
}
