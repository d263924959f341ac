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

// Package result decodes and encodes RESULT response bodies: the kind tag
// dispatch, and the five payload shapes (Void, Rows, SetKeyspace, Prepared,
// SchemaChange) that follow it.
package result

import (
	"bytes"
	"fmt"

	"github.com/cassandra-native-driver/cql/cqlerr"
	"github.com/cassandra-native-driver/cql/cqltype"
	"github.com/cassandra-native-driver/cql/cqlvalue"
	"github.com/cassandra-native-driver/cql/metadata"
	"github.com/cassandra-native-driver/cql/primitive"
)

// Kind is the [int] tag that opens every RESULT body.
type Kind int32

const (
	KindVoid         Kind = 0x0001
	KindRows         Kind = 0x0002
	KindSetKeyspace  Kind = 0x0003
	KindPrepared     Kind = 0x0004
	KindSchemaChange Kind = 0x0005
)

// Result is the decoded form of one RESULT response body. At most one of
// the embedded payload pointers is non-nil, matching Kind; a Void result
// has none.
type Result struct {
	Kind Kind

	Rows         *RowsResult
	SetKeyspace  *SetKeyspaceResult
	Prepared     *PreparedResult
	SchemaChange *SchemaChangeResult
}

// Row is a decoded result row: a positional slice of optional cell values,
// nil entries standing for NULL. A Row is only ever handed to callers once
// every one of its cells has decoded successfully; a failure partway
// through a row discards that row's partial state instead of publishing it.
type Row []*cqlvalue.CQLValue

type RowsResult struct {
	Metadata *metadata.ResultMetadata
	Rows     []Row
}

type SetKeyspaceResult struct {
	Keyspace string
}

type PreparedResult struct {
	PreparedQueryID   []byte
	VariablesMetadata *metadata.PreparedMetadata
	ResultMetadata    *metadata.ResultMetadata
}

// SchemaChangeTarget identifies the kind of schema object a SchemaChange
// result describes.
type SchemaChangeTarget string

const (
	SchemaChangeTargetKeyspace  SchemaChangeTarget = "KEYSPACE"
	SchemaChangeTargetTable     SchemaChangeTarget = "TABLE"
	SchemaChangeTargetType      SchemaChangeTarget = "TYPE"
	SchemaChangeTargetFunction  SchemaChangeTarget = "FUNCTION"
	SchemaChangeTargetAggregate SchemaChangeTarget = "AGGREGATE"
)

type SchemaChangeType string

const (
	SchemaChangeTypeCreated SchemaChangeType = "CREATED"
	SchemaChangeTypeUpdated SchemaChangeType = "UPDATED"
	SchemaChangeTypeDropped SchemaChangeType = "DROPPED"
)

type SchemaChangeResult struct {
	ChangeType SchemaChangeType
	Target     SchemaChangeTarget
	Keyspace   string
	Object     string
	Arguments  []string
}

// Decode reads one RESULT response body from c, which must be scoped to
// exactly that body (the caller slices it from the frame via Cursor.Sub
// using the frame header's declared length).
func Decode(c *primitive.Cursor) (*Result, error) {
	rawKind, err := c.ReadInt()
	if err != nil {
		return nil, fmt.Errorf("cannot read RESULT kind: %w", err)
	}
	kind := Kind(rawKind)
	switch kind {
	case KindVoid:
		return &Result{Kind: kind}, nil
	case KindSetKeyspace:
		keyspace, err := c.ReadString()
		if err != nil {
			return nil, fmt.Errorf("cannot read RESULT SetKeyspace keyspace: %w", err)
		}
		return &Result{Kind: kind, SetKeyspace: &SetKeyspaceResult{Keyspace: keyspace}}, nil
	case KindSchemaChange:
		sc, err := decodeSchemaChange(c)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: kind, SchemaChange: sc}, nil
	case KindPrepared:
		p, err := decodePrepared(c)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: kind, Prepared: p}, nil
	case KindRows:
		rows, err := decodeRows(c)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: kind, Rows: rows}, nil
	default:
		return nil, cqlerr.BadData(fmt.Sprintf("unrecognized RESULT kind 0x%08x", uint32(rawKind)))
	}
}

func decodeSchemaChange(c *primitive.Cursor) (*SchemaChangeResult, error) {
	sc := &SchemaChangeResult{}
	changeType, err := c.ReadString()
	if err != nil {
		return nil, fmt.Errorf("cannot read schema change type: %w", err)
	}
	sc.ChangeType = SchemaChangeType(changeType)
	target, err := c.ReadString()
	if err != nil {
		return nil, fmt.Errorf("cannot read schema change target: %w", err)
	}
	sc.Target = SchemaChangeTarget(target)
	if sc.Keyspace, err = c.ReadString(); err != nil {
		return nil, fmt.Errorf("cannot read schema change keyspace: %w", err)
	}
	switch sc.Target {
	case SchemaChangeTargetKeyspace:
	case SchemaChangeTargetTable, SchemaChangeTargetType:
		if sc.Object, err = c.ReadString(); err != nil {
			return nil, fmt.Errorf("cannot read schema change object: %w", err)
		}
	case SchemaChangeTargetFunction, SchemaChangeTargetAggregate:
		if sc.Object, err = c.ReadString(); err != nil {
			return nil, fmt.Errorf("cannot read schema change object: %w", err)
		}
		count, err := c.ReadShort()
		if err != nil {
			return nil, fmt.Errorf("cannot read schema change argument count: %w", err)
		}
		sc.Arguments = make([]string, count)
		for i := range sc.Arguments {
			if sc.Arguments[i], err = c.ReadString(); err != nil {
				return nil, fmt.Errorf("cannot read schema change argument %d: %w", i, err)
			}
		}
	default:
		return nil, cqlerr.BadData(fmt.Sprintf("unrecognized schema change target %q", target))
	}
	return sc, nil
}

func decodePrepared(c *primitive.Cursor) (*PreparedResult, error) {
	p := &PreparedResult{}
	var err error
	if p.PreparedQueryID, err = c.ReadShortBytes(); err != nil {
		return nil, fmt.Errorf("cannot read prepared query id: %w", err)
	}
	if p.VariablesMetadata, err = metadata.DecodePreparedMetadata(c); err != nil {
		return nil, fmt.Errorf("cannot read prepared variables metadata: %w", err)
	}
	if p.ResultMetadata, err = metadata.DecodeResultMetadata(c); err != nil {
		return nil, fmt.Errorf("cannot read prepared result metadata: %w", err)
	}
	return p, nil
}

func decodeRows(c *primitive.Cursor) (*RowsResult, error) {
	m, err := metadata.DecodeResultMetadata(c)
	if err != nil {
		return nil, fmt.Errorf("cannot read rows metadata: %w", err)
	}
	rowCount, err := c.ReadIntLength()
	if err != nil {
		return nil, fmt.Errorf("cannot read rows count: %w", err)
	}
	colCount := int(m.ColumnCount)
	rows := make([]Row, rowCount)
	for i := range rows {
		row, err := decodeOneRow(m, colCount, c)
		if err != nil {
			return nil, fmt.Errorf("cannot read row %d: %w", i, err)
		}
		rows[i] = row
	}
	return &RowsResult{Metadata: m, Rows: rows}, nil
}

// decodeOneRow decodes every cell of one row before returning any of it, so
// that a mid-row decode failure never leaves a partially populated Row
// visible to the caller.
func decodeOneRow(m *metadata.ResultMetadata, colCount int, c *primitive.Cursor) (Row, error) {
	row := make(Row, colCount)
	for j := 0; j < colCount; j++ {
		payload, err := c.ReadBytesOpt()
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", j, err)
		}
		if payload == nil {
			continue
		}
		var colType *cqltype.ColumnType
		if j < len(m.Columns) {
			colType = m.Columns[j].Type
		}
		if colType == nil {
			return nil, cqlerr.BadData(fmt.Sprintf("column %d has no type descriptor", j))
		}
		sub := primitive.NewCursor(payload)
		val, err := cqlvalue.ParseValue(colType, sub)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", j, err)
		}
		row[j] = &val
	}
	return row, nil
}

// Encode is the symmetric encode side of Decode.
func Encode(r *Result, dest *bytes.Buffer) error {
	primitive.WriteInt(int32(r.Kind), dest)
	switch r.Kind {
	case KindVoid:
		return nil
	case KindSetKeyspace:
		if r.SetKeyspace == nil {
			return cqlerr.BadData("missing SetKeyspace payload")
		}
		primitive.WriteString(r.SetKeyspace.Keyspace, dest)
		return nil
	case KindSchemaChange:
		return encodeSchemaChange(r.SchemaChange, dest)
	case KindPrepared:
		return encodePrepared(r.Prepared, dest)
	case KindRows:
		return encodeRows(r.Rows, dest)
	default:
		return cqlerr.BadData(fmt.Sprintf("unrecognized RESULT kind 0x%08x", uint32(r.Kind)))
	}
}

func encodeSchemaChange(sc *SchemaChangeResult, dest *bytes.Buffer) error {
	if sc == nil {
		return cqlerr.BadData("missing SchemaChange payload")
	}
	primitive.WriteString(string(sc.ChangeType), dest)
	primitive.WriteString(string(sc.Target), dest)
	primitive.WriteString(sc.Keyspace, dest)
	switch sc.Target {
	case SchemaChangeTargetKeyspace:
	case SchemaChangeTargetTable, SchemaChangeTargetType:
		primitive.WriteString(sc.Object, dest)
	case SchemaChangeTargetFunction, SchemaChangeTargetAggregate:
		primitive.WriteString(sc.Object, dest)
		primitive.WriteShort(uint16(len(sc.Arguments)), dest)
		for _, a := range sc.Arguments {
			primitive.WriteString(a, dest)
		}
	default:
		return cqlerr.BadData(fmt.Sprintf("unrecognized schema change target %q", sc.Target))
	}
	return nil
}

func encodePrepared(p *PreparedResult, dest *bytes.Buffer) error {
	if p == nil {
		return cqlerr.BadData("missing Prepared payload")
	}
	primitive.WriteShortBytes(p.PreparedQueryID, dest)
	if err := metadata.EncodePreparedMetadata(p.VariablesMetadata, dest); err != nil {
		return fmt.Errorf("cannot write prepared variables metadata: %w", err)
	}
	if err := metadata.EncodeResultMetadata(p.ResultMetadata, dest); err != nil {
		return fmt.Errorf("cannot write prepared result metadata: %w", err)
	}
	return nil
}

func encodeRows(r *RowsResult, dest *bytes.Buffer) error {
	if r == nil {
		return cqlerr.BadData("missing Rows payload")
	}
	if err := metadata.EncodeResultMetadata(r.Metadata, dest); err != nil {
		return fmt.Errorf("cannot write rows metadata: %w", err)
	}
	primitive.WriteInt(int32(len(r.Rows)), dest)
	colCount := int(r.Metadata.ColumnCount)
	for i, row := range r.Rows {
		if len(row) != colCount {
			return cqlerr.BadData(fmt.Sprintf("row %d has %d cells, expected %d", i, len(row), colCount))
		}
		for j, cell := range row {
			if cell == nil {
				primitive.WriteBytes(nil, dest)
				continue
			}
			var colType *cqltype.ColumnType
			if j < len(r.Metadata.Columns) {
				colType = r.Metadata.Columns[j].Type
			}
			var buf bytes.Buffer
			if err := cqlvalue.WriteValue(colType, *cell, &buf); err != nil {
				return fmt.Errorf("row %d column %d: %w", i, j, err)
			}
			primitive.WriteBytes(buf.Bytes(), dest)
		}
	}
	return nil
}
