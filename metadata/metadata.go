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

// Package metadata decodes and encodes the column metadata blocks shared by
// RESULT Rows and RESULT Prepared frames.
package metadata

import (
	"bytes"
	"fmt"

	"github.com/cassandra-native-driver/cql/cqltype"
	"github.com/cassandra-native-driver/cql/primitive"
)

// Flag bits of the metadata flags [int], shared between Rows and Prepared
// variables metadata.
type Flag uint32

const (
	FlagGlobalTablesSpec Flag = 0x00000001
	FlagHasMorePages     Flag = 0x00000002
	FlagNoMetadata       Flag = 0x00000004
	FlagMetadataChanged  Flag = 0x00000008
)

func (f Flag) Contains(other Flag) bool { return f&other != 0 }

// ColumnSpec describes one column's keyspace, table, name and type.
type ColumnSpec struct {
	Keyspace string
	Table    string
	Name     string
	Type     *cqltype.ColumnType
}

func haveSameTable(cols []ColumnSpec) bool {
	if len(cols) == 0 {
		return false
	}
	ks, table := cols[0].Keyspace, cols[0].Table
	for _, c := range cols[1:] {
		if c.Keyspace != ks || c.Table != table {
			return false
		}
	}
	return true
}

// ResultMetadata is the metadata block of a RESULT Rows frame.
type ResultMetadata struct {
	ColumnCount int32
	PagingState []byte
	// ResultMetadataId is set only when the server announces metadata has
	// changed mid-execution (protocol v5's prepared-metadata-ID renegotiation).
	ResultMetadataId []byte
	Columns          []ColumnSpec
}

func (m *ResultMetadata) flags() Flag {
	var f Flag
	if len(m.Columns) == 0 {
		f |= FlagNoMetadata
	} else if haveSameTable(m.Columns) {
		f |= FlagGlobalTablesSpec
	}
	if m.PagingState != nil {
		f |= FlagHasMorePages
	}
	if m.ResultMetadataId != nil {
		f |= FlagMetadataChanged
	}
	return f
}

func DecodeResultMetadata(c *primitive.Cursor) (*ResultMetadata, error) {
	rawFlags, err := c.ReadInt()
	if err != nil {
		return nil, fmt.Errorf("cannot read rows metadata flags: %w", err)
	}
	flags := Flag(rawFlags)
	m := &ResultMetadata{}
	if m.ColumnCount, err = c.ReadInt(); err != nil {
		return nil, fmt.Errorf("cannot read rows metadata column count: %w", err)
	}
	if flags.Contains(FlagHasMorePages) {
		if m.PagingState, err = c.ReadBytes(); err != nil {
			return nil, fmt.Errorf("cannot read rows metadata paging state: %w", err)
		}
	}
	if flags.Contains(FlagMetadataChanged) {
		if m.ResultMetadataId, err = c.ReadShortBytes(); err != nil {
			return nil, fmt.Errorf("cannot read rows metadata result metadata id: %w", err)
		}
	}
	if !flags.Contains(FlagNoMetadata) {
		globalTableSpec := flags.Contains(FlagGlobalTablesSpec)
		if m.Columns, err = decodeColumns(globalTableSpec, int(m.ColumnCount), c); err != nil {
			return nil, fmt.Errorf("cannot read rows metadata columns: %w", err)
		}
	}
	return m, nil
}

func EncodeResultMetadata(m *ResultMetadata, dest *bytes.Buffer) error {
	if m == nil {
		m = &ResultMetadata{}
	}
	if len(m.Columns) > 0 && int(m.ColumnCount) != len(m.Columns) {
		return fmt.Errorf("rows metadata column count %d does not match len(columns) %d", m.ColumnCount, len(m.Columns))
	}
	flags := m.flags()
	primitive.WriteInt(int32(flags), dest)
	primitive.WriteInt(m.ColumnCount, dest)
	if flags.Contains(FlagHasMorePages) {
		primitive.WriteBytes(m.PagingState, dest)
	}
	if flags.Contains(FlagMetadataChanged) {
		primitive.WriteShortBytes(m.ResultMetadataId, dest)
	}
	if !flags.Contains(FlagNoMetadata) && len(m.Columns) > 0 {
		globalTableSpec := flags.Contains(FlagGlobalTablesSpec)
		return encodeColumns(globalTableSpec, m.Columns, dest)
	}
	return nil
}

// PreparedMetadata is the "variables metadata" block of a RESULT Prepared
// frame, describing a prepared statement's bind variables.
type PreparedMetadata struct {
	// PkIndices lists the positions, in wire order, of bind variables that
	// form the table's partition key.
	PkIndices []uint16
	Columns   []ColumnSpec
}

func (m *PreparedMetadata) flags() Flag {
	var f Flag
	if len(m.Columns) > 0 && haveSameTable(m.Columns) {
		f |= FlagGlobalTablesSpec
	}
	return f
}

func DecodePreparedMetadata(c *primitive.Cursor) (*PreparedMetadata, error) {
	rawFlags, err := c.ReadInt()
	if err != nil {
		return nil, fmt.Errorf("cannot read prepared metadata flags: %w", err)
	}
	flags := Flag(rawFlags)
	columnCount, err := c.ReadInt()
	if err != nil {
		return nil, fmt.Errorf("cannot read prepared metadata column count: %w", err)
	}
	m := &PreparedMetadata{}
	pkCount, err := c.ReadIntLength()
	if err != nil {
		return nil, fmt.Errorf("cannot read prepared metadata pk indices count: %w", err)
	}
	if pkCount > 0 {
		m.PkIndices = make([]uint16, pkCount)
		for i := range m.PkIndices {
			if m.PkIndices[i], err = c.ReadShort(); err != nil {
				return nil, fmt.Errorf("cannot read prepared metadata pk index %d: %w", i, err)
			}
		}
	}
	if columnCount > 0 {
		globalTableSpec := flags.Contains(FlagGlobalTablesSpec)
		if m.Columns, err = decodeColumns(globalTableSpec, int(columnCount), c); err != nil {
			return nil, fmt.Errorf("cannot read prepared metadata columns: %w", err)
		}
	}
	return m, nil
}

func EncodePreparedMetadata(m *PreparedMetadata, dest *bytes.Buffer) error {
	if m == nil {
		m = &PreparedMetadata{}
	}
	flags := m.flags()
	primitive.WriteInt(int32(flags), dest)
	primitive.WriteInt(int32(len(m.Columns)), dest)
	primitive.WriteInt(int32(len(m.PkIndices)), dest)
	for _, idx := range m.PkIndices {
		primitive.WriteShort(idx, dest)
	}
	if len(m.Columns) > 0 {
		globalTableSpec := flags.Contains(FlagGlobalTablesSpec)
		return encodeColumns(globalTableSpec, m.Columns, dest)
	}
	return nil
}

func decodeColumns(globalTableSpec bool, columnCount int, c *primitive.Cursor) ([]ColumnSpec, error) {
	var globalKs, globalTable string
	var err error
	if globalTableSpec {
		if globalKs, err = c.ReadString(); err != nil {
			return nil, fmt.Errorf("cannot read global keyspace: %w", err)
		}
		if globalTable, err = c.ReadString(); err != nil {
			return nil, fmt.Errorf("cannot read global table: %w", err)
		}
	}
	cols := make([]ColumnSpec, columnCount)
	for i := range cols {
		if globalTableSpec {
			cols[i].Keyspace = globalKs
			cols[i].Table = globalTable
		} else {
			if cols[i].Keyspace, err = c.ReadString(); err != nil {
				return nil, fmt.Errorf("cannot read column %d keyspace: %w", i, err)
			}
			if cols[i].Table, err = c.ReadString(); err != nil {
				return nil, fmt.Errorf("cannot read column %d table: %w", i, err)
			}
		}
		if cols[i].Name, err = c.ReadString(); err != nil {
			return nil, fmt.Errorf("cannot read column %d name: %w", i, err)
		}
		if cols[i].Type, err = cqltype.ParseType(c); err != nil {
			return nil, fmt.Errorf("cannot read column %d type: %w", i, err)
		}
	}
	return cols, nil
}

func encodeColumns(globalTableSpec bool, cols []ColumnSpec, dest *bytes.Buffer) error {
	if globalTableSpec {
		primitive.WriteString(cols[0].Keyspace, dest)
		primitive.WriteString(cols[0].Table, dest)
	}
	for i, col := range cols {
		if !globalTableSpec {
			primitive.WriteString(col.Keyspace, dest)
			primitive.WriteString(col.Table, dest)
		}
		primitive.WriteString(col.Name, dest)
		if err := cqltype.WriteType(col.Type, dest); err != nil {
			return fmt.Errorf("cannot write column %d type: %w", i, err)
		}
	}
	return nil
}
