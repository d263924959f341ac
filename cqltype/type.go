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

// Package cqltype models ColumnType, the recursive, tagged description of a
// CQL column's type as it appears on the wire.
package cqltype

import (
	"bytes"
	"fmt"

	"github.com/cassandra-native-driver/cql/cqlerr"
	"github.com/cassandra-native-driver/cql/primitive"
)

// Kind identifies which ColumnType case a value represents. The numeric
// values are exactly the wire tags from the CQL protocol's type-code table.
type Kind uint16

const (
	KindAscii     Kind = 0x0001
	KindBigInt    Kind = 0x0002
	KindBoolean   Kind = 0x0004
	KindCounter   Kind = 0x0005
	KindInt       Kind = 0x0009
	KindTimestamp Kind = 0x000B
	KindText      Kind = 0x000D
	KindInet      Kind = 0x0010
	KindDate      Kind = 0x0011
	KindTime      Kind = 0x0012
	KindSmallInt  Kind = 0x0013
	KindTinyInt   Kind = 0x0014
	KindList      Kind = 0x0020
	KindMap       Kind = 0x0021
	KindSet       Kind = 0x0022
	KindUDT       Kind = 0x0030
	KindTuple     Kind = 0x0031
)

func (k Kind) isScalar() bool {
	switch k {
	case KindAscii, KindBigInt, KindBoolean, KindCounter, KindInt, KindTimestamp,
		KindText, KindInet, KindDate, KindTime, KindSmallInt, KindTinyInt:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindAscii:
		return "ascii"
	case KindBigInt:
		return "bigint"
	case KindBoolean:
		return "boolean"
	case KindCounter:
		return "counter"
	case KindInt:
		return "int"
	case KindTimestamp:
		return "timestamp"
	case KindText:
		return "text"
	case KindInet:
		return "inet"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindSmallInt:
		return "smallint"
	case KindTinyInt:
		return "tinyint"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindSet:
		return "set"
	case KindUDT:
		return "udt"
	case KindTuple:
		return "tuple"
	default:
		return fmt.Sprintf("unknown(0x%04x)", uint16(k))
	}
}

// Field is one named, typed field of a user-defined type, in declaration
// order.
type Field struct {
	Name string
	Type *ColumnType
}

// ColumnType is a tagged variant describing a CQL column type, recursively.
// Only the fields relevant to Kind are populated; the tree is a strict DAG
// owned by its root, never a graph with shared or back-referencing nodes.
type ColumnType struct {
	Kind Kind

	// List, Set
	Elem *ColumnType

	// Map
	Key   *ColumnType
	Value *ColumnType

	// UserDefinedType
	Keyspace string
	TypeName string
	Fields   []Field

	// Tuple
	Elems []*ColumnType
}

func Scalar(k Kind) *ColumnType { return &ColumnType{Kind: k} }

func NewList(elem *ColumnType) *ColumnType { return &ColumnType{Kind: KindList, Elem: elem} }
func NewSet(elem *ColumnType) *ColumnType  { return &ColumnType{Kind: KindSet, Elem: elem} }
func NewMap(key, value *ColumnType) *ColumnType {
	return &ColumnType{Kind: KindMap, Key: key, Value: value}
}
func NewTuple(elems ...*ColumnType) *ColumnType {
	return &ColumnType{Kind: KindTuple, Elems: elems}
}
func NewUDT(keyspace, typeName string, fields []Field) *ColumnType {
	return &ColumnType{Kind: KindUDT, Keyspace: keyspace, TypeName: typeName, Fields: fields}
}

// Equal reports structural equality, recursing into nested types.
func (t *ColumnType) Equal(o *ColumnType) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindList, KindSet:
		return t.Elem.Equal(o.Elem)
	case KindMap:
		return t.Key.Equal(o.Key) && t.Value.Equal(o.Value)
	case KindTuple:
		if len(t.Elems) != len(o.Elems) {
			return false
		}
		for i := range t.Elems {
			if !t.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	case KindUDT:
		if t.Keyspace != o.Keyspace || t.TypeName != o.TypeName || len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// ParseType reads one [short] tag and recursively decodes the ColumnType it
// names. Unknown tags fail with cqlerr.TypeNotImplemented so callers can
// choose to skip or abort.
func ParseType(c *primitive.Cursor) (*ColumnType, error) {
	tag, err := c.ReadShort()
	if err != nil {
		return nil, err
	}
	kind := Kind(tag)
	if kind.isScalar() {
		return &ColumnType{Kind: kind}, nil
	}
	switch kind {
	case KindList:
		elem, err := ParseType(c)
		if err != nil {
			return nil, fmt.Errorf("cannot read list element type: %w", err)
		}
		return NewList(elem), nil
	case KindSet:
		elem, err := ParseType(c)
		if err != nil {
			return nil, fmt.Errorf("cannot read set element type: %w", err)
		}
		return NewSet(elem), nil
	case KindMap:
		key, err := ParseType(c)
		if err != nil {
			return nil, fmt.Errorf("cannot read map key type: %w", err)
		}
		value, err := ParseType(c)
		if err != nil {
			return nil, fmt.Errorf("cannot read map value type: %w", err)
		}
		return NewMap(key, value), nil
	case KindUDT:
		keyspace, err := c.ReadString()
		if err != nil {
			return nil, fmt.Errorf("cannot read udt keyspace: %w", err)
		}
		typeName, err := c.ReadString()
		if err != nil {
			return nil, fmt.Errorf("cannot read udt name: %w", err)
		}
		fieldCount, err := c.ReadShort()
		if err != nil {
			return nil, fmt.Errorf("cannot read udt field count: %w", err)
		}
		fields := make([]Field, fieldCount)
		for i := range fields {
			if fields[i].Name, err = c.ReadString(); err != nil {
				return nil, fmt.Errorf("cannot read udt field %d name: %w", i, err)
			}
			if fields[i].Type, err = ParseType(c); err != nil {
				return nil, fmt.Errorf("cannot read udt field %d type: %w", i, err)
			}
		}
		return NewUDT(keyspace, typeName, fields), nil
	case KindTuple:
		count, err := c.ReadShort()
		if err != nil {
			return nil, fmt.Errorf("cannot read tuple element count: %w", err)
		}
		elems := make([]*ColumnType, count)
		for i := range elems {
			if elems[i], err = ParseType(c); err != nil {
				return nil, fmt.Errorf("cannot read tuple element %d type: %w", i, err)
			}
		}
		return NewTuple(elems...), nil
	default:
		return nil, cqlerr.TypeNotImplemented(tag)
	}
}

// WriteType is the symmetric encode side of ParseType.
func WriteType(t *ColumnType, dest *bytes.Buffer) error {
	primitive.WriteShort(uint16(t.Kind), dest)
	if t.Kind.isScalar() {
		return nil
	}
	switch t.Kind {
	case KindList, KindSet:
		return WriteType(t.Elem, dest)
	case KindMap:
		if err := WriteType(t.Key, dest); err != nil {
			return err
		}
		return WriteType(t.Value, dest)
	case KindUDT:
		primitive.WriteString(t.Keyspace, dest)
		primitive.WriteString(t.TypeName, dest)
		primitive.WriteShort(uint16(len(t.Fields)), dest)
		for _, f := range t.Fields {
			primitive.WriteString(f.Name, dest)
			if err := WriteType(f.Type, dest); err != nil {
				return err
			}
		}
		return nil
	case KindTuple:
		primitive.WriteShort(uint16(len(t.Elems)), dest)
		for _, e := range t.Elems {
			if err := WriteType(e, dest); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("cannot write unknown column type kind 0x%04x", uint16(t.Kind))
	}
}
