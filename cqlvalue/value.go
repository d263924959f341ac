// Copyright 2020 DataStax
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cqlvalue models CQLValue, the decoded, typed form of a CQL cell,
// together with its wire decoder/encoder and typed accessors.
package cqlvalue

import (
	"bytes"
	"net"
	"time"
	"unicode/utf8"

	"github.com/cassandra-native-driver/cql/cqlerr"
	"github.com/cassandra-native-driver/cql/cqltype"
	"github.com/cassandra-native-driver/cql/primitive"
)

// MapEntry is one (key, value) pair of a decoded Map, in wire order.
type MapEntry struct {
	Key   CQLValue
	Value CQLValue
}

// UDTField is one named field of a decoded user-defined type. Value is nil
// when the field was absent on the wire.
type UDTField struct {
	Name  string
	Value *CQLValue
}

// UDTValue is a decoded user-defined type instance.
type UDTValue struct {
	Keyspace string
	TypeName string
	Fields   []UDTField
}

// CQLValue is a tagged variant mirroring cqltype.ColumnType, holding a
// decoded value. Only the fields relevant to Kind are populated.
type CQLValue struct {
	Kind cqltype.Kind

	int32Val  int32
	int64Val  int64
	int16Val  int16
	int8Val   int8
	boolVal   bool
	textVal   string
	ip        net.IP

	elems []CQLValue
	pairs []MapEntry
	udt   *UDTValue
	tuple []*CQLValue
}

// Constructors

func NewInt(v int32) CQLValue     { return CQLValue{Kind: cqltype.KindInt, int32Val: v} }
func NewBigInt(v int64) CQLValue { return CQLValue{Kind: cqltype.KindBigInt, int64Val: v} }
func NewCounter(v int64) CQLValue {
	return CQLValue{Kind: cqltype.KindCounter, int64Val: v}
}
func NewSmallInt(v int16) CQLValue { return CQLValue{Kind: cqltype.KindSmallInt, int16Val: v} }
func NewTinyInt(v int8) CQLValue   { return CQLValue{Kind: cqltype.KindTinyInt, int8Val: v} }
func NewBoolean(v bool) CQLValue   { return CQLValue{Kind: cqltype.KindBoolean, boolVal: v} }

// NewAscii fails if v contains a byte >= 0x80, per the Ascii invariant.
func NewAscii(v string) (CQLValue, error) {
	if !isAscii(v) {
		return CQLValue{}, cqlerr.BadData("ascii value contains a byte >= 0x80")
	}
	return CQLValue{Kind: cqltype.KindAscii, textVal: v}, nil
}

// NewText fails if v is not valid UTF-8.
func NewText(v string) (CQLValue, error) {
	if !utf8.ValidString(v) {
		return CQLValue{}, cqlerr.BadData("text value is not valid UTF-8")
	}
	return CQLValue{Kind: cqltype.KindText, textVal: v}, nil
}

// NewDate stores days_since_unix_epoch directly as a two's-complement i32
// offset, per spec's explicit read_i32() formula (no 2^31 bias applied).
func NewDate(daysSinceEpoch int32) CQLValue {
	return CQLValue{Kind: cqltype.KindDate, int32Val: daysSinceEpoch}
}

// NewTime stores a nanosecond-of-day duration.
func NewTime(d time.Duration) CQLValue {
	return CQLValue{Kind: cqltype.KindTime, int64Val: int64(d)}
}

// NewTimestamp stores milliseconds since the Unix epoch, UTC.
func NewTimestamp(t time.Time) CQLValue {
	return CQLValue{Kind: cqltype.KindTimestamp, int64Val: t.UnixMilli()}
}

func NewTimestampMillis(ms int64) CQLValue {
	return CQLValue{Kind: cqltype.KindTimestamp, int64Val: ms}
}

// NewInet fails unless ip is a 4- or 16-byte address.
func NewInet(ip net.IP) (CQLValue, error) {
	if ip4 := ip.To4(); ip4 != nil {
		return CQLValue{Kind: cqltype.KindInet, ip: ip4}, nil
	}
	if len(ip) == net.IPv6len {
		return CQLValue{Kind: cqltype.KindInet, ip: ip}, nil
	}
	return CQLValue{}, cqlerr.BadData("inet address must be 4 or 16 bytes")
}

func NewList(elems []CQLValue) CQLValue {
	return CQLValue{Kind: cqltype.KindList, elems: elems}
}

func NewSet(elems []CQLValue) CQLValue {
	return CQLValue{Kind: cqltype.KindSet, elems: elems}
}

func NewMap(pairs []MapEntry) CQLValue {
	return CQLValue{Kind: cqltype.KindMap, pairs: pairs}
}

func NewUDT(v *UDTValue) CQLValue {
	return CQLValue{Kind: cqltype.KindUDT, udt: v}
}

func NewTuple(elems []*CQLValue) CQLValue {
	return CQLValue{Kind: cqltype.KindTuple, tuple: elems}
}

// Accessors

func (v CQLValue) AsInt() (int32, bool)      { return v.int32Val, v.Kind == cqltype.KindInt }
func (v CQLValue) AsBigInt() (int64, bool)  { return v.int64Val, v.Kind == cqltype.KindBigInt }
func (v CQLValue) AsCounter() (int64, bool) { return v.int64Val, v.Kind == cqltype.KindCounter }
func (v CQLValue) AsSmallInt() (int16, bool) { return v.int16Val, v.Kind == cqltype.KindSmallInt }
func (v CQLValue) AsTinyInt() (int8, bool)   { return v.int8Val, v.Kind == cqltype.KindTinyInt }
func (v CQLValue) AsBoolean() (bool, bool)   { return v.boolVal, v.Kind == cqltype.KindBoolean }

func (v CQLValue) AsAscii() (string, bool) { return v.textVal, v.Kind == cqltype.KindAscii }
func (v CQLValue) AsText() (string, bool)  { return v.textVal, v.Kind == cqltype.KindText }

// AsDate returns the raw days-since-epoch offset.
func (v CQLValue) AsDate() (int32, bool) { return v.int32Val, v.Kind == cqltype.KindDate }

func (v CQLValue) AsTime() (time.Duration, bool) {
	return time.Duration(v.int64Val), v.Kind == cqltype.KindTime
}

func (v CQLValue) AsTimestamp() (time.Time, bool) {
	if v.Kind != cqltype.KindTimestamp {
		return time.Time{}, false
	}
	return time.UnixMilli(v.int64Val).UTC(), true
}

func (v CQLValue) AsTimestampMillis() (int64, bool) {
	return v.int64Val, v.Kind == cqltype.KindTimestamp
}

func (v CQLValue) AsInet() (net.IP, bool) { return v.ip, v.Kind == cqltype.KindInet }

func (v CQLValue) AsList() ([]CQLValue, bool) { return v.elems, v.Kind == cqltype.KindList }
func (v CQLValue) AsSet() ([]CQLValue, bool)  { return v.elems, v.Kind == cqltype.KindSet }
func (v CQLValue) AsMap() ([]MapEntry, bool)  { return v.pairs, v.Kind == cqltype.KindMap }
func (v CQLValue) AsUDT() (*UDTValue, bool)   { return v.udt, v.Kind == cqltype.KindUDT }
func (v CQLValue) AsTuple() ([]*CQLValue, bool) { return v.tuple, v.Kind == cqltype.KindTuple }

func isAscii(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// Equal reports deep equality, used by tests and by property 2 (value
// round-tripping) in particular.
func (v CQLValue) Equal(o CQLValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case cqltype.KindInt:
		return v.int32Val == o.int32Val
	case cqltype.KindBigInt, cqltype.KindTimestamp, cqltype.KindTime, cqltype.KindCounter:
		return v.int64Val == o.int64Val
	case cqltype.KindSmallInt:
		return v.int16Val == o.int16Val
	case cqltype.KindTinyInt:
		return v.int8Val == o.int8Val
	case cqltype.KindBoolean:
		return v.boolVal == o.boolVal
	case cqltype.KindAscii, cqltype.KindText:
		return v.textVal == o.textVal
	case cqltype.KindDate:
		return v.int32Val == o.int32Val
	case cqltype.KindInet:
		return v.ip.Equal(o.ip)
	case cqltype.KindList, cqltype.KindSet:
		if len(v.elems) != len(o.elems) {
			return false
		}
		for i := range v.elems {
			if !v.elems[i].Equal(o.elems[i]) {
				return false
			}
		}
		return true
	case cqltype.KindMap:
		if len(v.pairs) != len(o.pairs) {
			return false
		}
		for i := range v.pairs {
			if !v.pairs[i].Key.Equal(o.pairs[i].Key) || !v.pairs[i].Value.Equal(o.pairs[i].Value) {
				return false
			}
		}
		return true
	case cqltype.KindUDT:
		return v.udt.equal(o.udt)
	case cqltype.KindTuple:
		if len(v.tuple) != len(o.tuple) {
			return false
		}
		for i := range v.tuple {
			if !optEqual(v.tuple[i], o.tuple[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func optEqual(a, b *CQLValue) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (u *UDTValue) equal(o *UDTValue) bool {
	if u == nil || o == nil {
		return u == o
	}
	if u.Keyspace != o.Keyspace || u.TypeName != o.TypeName || len(u.Fields) != len(o.Fields) {
		return false
	}
	for i := range u.Fields {
		if u.Fields[i].Name != o.Fields[i].Name || !optEqual(u.Fields[i].Value, o.Fields[i].Value) {
			return false
		}
	}
	return true
}

// ParseValue decodes a value of the given type from c, which must be scoped
// to exactly the value's payload bytes (the caller reads the enclosing
// [bytes] length prefix and wraps the payload in its own Cursor before
// calling in).
func ParseValue(t *cqltype.ColumnType, c *primitive.Cursor) (CQLValue, error) {
	switch t.Kind {
	case cqltype.KindInt:
		if c.Len() != 4 {
			return CQLValue{}, cqlerr.BadData("int value must be 4 bytes")
		}
		n, _ := c.ReadInt()
		return NewInt(n), nil
	case cqltype.KindBigInt:
		if c.Len() != 8 {
			return CQLValue{}, cqlerr.BadData("bigint value must be 8 bytes")
		}
		n, _ := c.ReadLong()
		return NewBigInt(n), nil
	case cqltype.KindCounter:
		if c.Len() != 8 {
			return CQLValue{}, cqlerr.BadData("counter value must be 8 bytes")
		}
		n, _ := c.ReadLong()
		return NewCounter(n), nil
	case cqltype.KindSmallInt:
		if c.Len() != 2 {
			return CQLValue{}, cqlerr.BadData("smallint value must be 2 bytes")
		}
		n, _ := c.ReadShort()
		return NewSmallInt(int16(n)), nil
	case cqltype.KindTinyInt:
		if c.Len() != 1 {
			return CQLValue{}, cqlerr.BadData("tinyint value must be 1 byte")
		}
		n, _ := c.ReadByte()
		return NewTinyInt(int8(n)), nil
	case cqltype.KindBoolean:
		if c.Len() != 1 {
			return CQLValue{}, cqlerr.BadData("boolean value must be 1 byte")
		}
		n, _ := c.ReadByte()
		return NewBoolean(n > 0), nil
	case cqltype.KindDate:
		if c.Len() != 4 {
			return CQLValue{}, cqlerr.BadData("date value must be 4 bytes")
		}
		n, _ := c.ReadInt()
		return NewDate(n), nil
	case cqltype.KindTime:
		if c.Len() != 8 {
			return CQLValue{}, cqlerr.BadData("time value must be 8 bytes")
		}
		n, _ := c.ReadLong()
		return NewTime(time.Duration(n)), nil
	case cqltype.KindTimestamp:
		if c.Len() != 8 {
			return CQLValue{}, cqlerr.BadData("timestamp value must be 8 bytes")
		}
		n, _ := c.ReadLong()
		return NewTimestampMillis(n), nil
	case cqltype.KindInet:
		rest, _ := c.Sub(c.Len())
		raw := rest.Remaining()
		if len(raw) != net.IPv4len && len(raw) != net.IPv6len {
			return CQLValue{}, cqlerr.BadData("inet value must be 4 or 16 bytes")
		}
		ip := make(net.IP, len(raw))
		copy(ip, raw)
		return NewInet(ip)
	case cqltype.KindAscii:
		rest, _ := c.Sub(c.Len())
		raw := rest.Remaining()
		if !isAsciiBytes(raw) {
			return CQLValue{}, cqlerr.BadData("ascii value contains a byte >= 0x80")
		}
		return NewAscii(string(raw))
	case cqltype.KindText:
		rest, _ := c.Sub(c.Len())
		raw := rest.Remaining()
		if !utf8.Valid(raw) {
			return CQLValue{}, cqlerr.BadData("text value is not valid UTF-8")
		}
		return NewText(string(raw))
	case cqltype.KindList:
		elems, err := parseElements(t.Elem, c)
		if err != nil {
			return CQLValue{}, err
		}
		return NewList(elems), nil
	case cqltype.KindSet:
		elems, err := parseElements(t.Elem, c)
		if err != nil {
			return CQLValue{}, err
		}
		return NewSet(elems), nil
	case cqltype.KindMap:
		count, err := c.ReadIntLength()
		if err != nil {
			return CQLValue{}, err
		}
		pairs := make([]MapEntry, count)
		for i := range pairs {
			key, err := parseElement(t.Key, c)
			if err != nil {
				return CQLValue{}, err
			}
			value, err := parseElement(t.Value, c)
			if err != nil {
				return CQLValue{}, err
			}
			pairs[i] = MapEntry{Key: key, Value: value}
		}
		return NewMap(pairs), nil
	case cqltype.KindUDT:
		fields := make([]UDTField, len(t.Fields))
		for i, f := range t.Fields {
			payload, err := c.ReadBytesOpt()
			if err != nil {
				return CQLValue{}, err
			}
			fields[i].Name = f.Name
			if payload == nil {
				continue
			}
			sub := primitive.NewCursor(payload)
			val, err := ParseValue(f.Type, sub)
			if err != nil {
				return CQLValue{}, err
			}
			fields[i].Value = &val
		}
		return NewUDT(&UDTValue{Keyspace: t.Keyspace, TypeName: t.TypeName, Fields: fields}), nil
	case cqltype.KindTuple:
		elems := make([]*CQLValue, len(t.Elems))
		for i, elemType := range t.Elems {
			if c.Len() == 0 {
				return CQLValue{}, cqlerr.BadData("tuple has fewer payloads than declared types")
			}
			payload, err := c.ReadBytesOpt()
			if err != nil {
				return CQLValue{}, err
			}
			if payload == nil {
				continue
			}
			sub := primitive.NewCursor(payload)
			val, err := ParseValue(elemType, sub)
			if err != nil {
				return CQLValue{}, err
			}
			elems[i] = &val
		}
		return NewTuple(elems), nil
	default:
		return CQLValue{}, cqlerr.TypeNotImplemented(uint16(t.Kind))
	}
}

func isAsciiBytes(b []byte) bool {
	for _, x := range b {
		if x >= 0x80 {
			return false
		}
	}
	return true
}

// parseElement decodes one collection/map element: an [int] length prefix
// (required non-negative: a NULL collection element is a decode error, see
// parseElements) followed by the element's payload.
func parseElement(t *cqltype.ColumnType, c *primitive.Cursor) (CQLValue, error) {
	payload, err := c.ReadBytes()
	if err != nil {
		return CQLValue{}, err
	}
	sub := primitive.NewCursor(payload)
	v, err := ParseValue(t, sub)
	if err != nil {
		return CQLValue{}, err
	}
	if sub.Len() != 0 {
		return CQLValue{}, cqlerr.BadData("element payload has trailing bytes")
	}
	return v, nil
}

// parseElements decodes a List/Set body: an [int] count followed by that
// many elements.
func parseElements(elemType *cqltype.ColumnType, c *primitive.Cursor) ([]CQLValue, error) {
	count, err := c.ReadIntLength()
	if err != nil {
		return nil, err
	}
	elems := make([]CQLValue, count)
	for i := range elems {
		if elems[i], err = parseElement(elemType, c); err != nil {
			return nil, err
		}
	}
	return elems, nil
}

// WriteValue is the symmetric encode side of ParseValue. It writes exactly
// the value's payload bytes (no enclosing [bytes] length prefix); callers
// wrap the result with primitive.WriteBytes.
func WriteValue(t *cqltype.ColumnType, v CQLValue, dest *bytes.Buffer) error {
	switch t.Kind {
	case cqltype.KindInt:
		primitive.WriteInt(v.int32Val, dest)
	case cqltype.KindBigInt, cqltype.KindCounter:
		primitive.WriteLong(v.int64Val, dest)
	case cqltype.KindSmallInt:
		primitive.WriteShort(uint16(v.int16Val), dest)
	case cqltype.KindTinyInt:
		primitive.WriteByte(uint8(v.int8Val), dest)
	case cqltype.KindBoolean:
		b := uint8(0)
		if v.boolVal {
			b = 1
		}
		primitive.WriteByte(b, dest)
	case cqltype.KindDate:
		primitive.WriteInt(v.int32Val, dest)
	case cqltype.KindTime, cqltype.KindTimestamp:
		primitive.WriteLong(v.int64Val, dest)
	case cqltype.KindInet:
		dest.Write(v.ip)
	case cqltype.KindAscii, cqltype.KindText:
		dest.WriteString(v.textVal)
	case cqltype.KindList, cqltype.KindSet:
		primitive.WriteInt(int32(len(v.elems)), dest)
		for _, e := range v.elems {
			if err := writeElement(t.Elem, e, dest); err != nil {
				return err
			}
		}
	case cqltype.KindMap:
		primitive.WriteInt(int32(len(v.pairs)), dest)
		for _, p := range v.pairs {
			if err := writeElement(t.Key, p.Key, dest); err != nil {
				return err
			}
			if err := writeElement(t.Value, p.Value, dest); err != nil {
				return err
			}
		}
	case cqltype.KindUDT:
		for i, f := range t.Fields {
			fv := v.udt.Fields[i].Value
			if fv == nil {
				primitive.WriteInt(-1, dest)
				continue
			}
			var fieldBuf bytes.Buffer
			if err := WriteValue(f.Type, *fv, &fieldBuf); err != nil {
				return err
			}
			primitive.WriteBytes(fieldBuf.Bytes(), dest)
		}
	case cqltype.KindTuple:
		for i, elemType := range t.Elems {
			ev := v.tuple[i]
			if ev == nil {
				primitive.WriteInt(-1, dest)
				continue
			}
			var elemBuf bytes.Buffer
			if err := WriteValue(elemType, *ev, &elemBuf); err != nil {
				return err
			}
			primitive.WriteBytes(elemBuf.Bytes(), dest)
		}
	default:
		return cqlerr.TypeNotImplemented(uint16(t.Kind))
	}
	return nil
}

func writeElement(t *cqltype.ColumnType, v CQLValue, dest *bytes.Buffer) error {
	var buf bytes.Buffer
	if err := WriteValue(t, v, &buf); err != nil {
		return err
	}
	primitive.WriteBytes(buf.Bytes(), dest)
	return nil
}
