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

// Package rowproj maps decoded Rows onto application structs and back,
// positionally by declared field order — never by column name. It is the
// generic derivation mechanism spec'd abstractly as a record-independent
// contract: FromRow for decoding, ValueList for binding EXECUTE/QUERY
// parameters.
package rowproj

import (
	"bytes"
	"net"
	"reflect"
	"time"

	"github.com/cassandra-native-driver/cql/cqlerr"
	"github.com/cassandra-native-driver/cql/cqltype"
	"github.com/cassandra-native-driver/cql/cqlvalue"
	"github.com/cassandra-native-driver/cql/request"
	"github.com/cassandra-native-driver/cql/result"
)

var (
	typeOfInt32    = reflect.TypeOf(int32(0))
	typeOfInt64    = reflect.TypeOf(int64(0))
	typeOfInt16    = reflect.TypeOf(int16(0))
	typeOfInt8     = reflect.TypeOf(int8(0))
	typeOfBool     = reflect.TypeOf(false)
	typeOfString   = reflect.TypeOf("")
	typeOfNetIP    = reflect.TypeOf(net.IP(nil))
	typeOfDuration = reflect.TypeOf(time.Duration(0))
	typeOfTime     = reflect.TypeOf(time.Time{})
)

// FromRow decodes row positionally into dest, which must be a non-nil
// pointer to a struct whose exported field count matches len(row). Field i
// receives row[i]; a nil row cell (NULL) leaves a non-pointer field at its
// zero value and sets a pointer field to nil.
func FromRow(row result.Row, dest interface{}) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr || destValue.IsNil() {
		return cqlerr.BadCQLVal(-1, "destination must be a non-nil pointer to a struct")
	}
	structValue := destValue.Elem()
	fields := exportedFields(structValue)
	if len(fields) != len(row) {
		return cqlerr.WrongRowSize(len(fields), len(row))
	}
	for i, field := range fields {
		if err := assignCell(field, row[i]); err != nil {
			return cqlerr.BadCQLVal(i, err.Error())
		}
	}
	return nil
}

func assignCell(field reflect.Value, cell *cqlvalue.CQLValue) error {
	if field.Kind() == reflect.Ptr {
		if cell == nil {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		target := reflect.New(field.Type().Elem())
		if err := assignScalar(target.Elem(), *cell); err != nil {
			return err
		}
		field.Set(target)
		return nil
	}
	if cell == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	return assignScalar(field, *cell)
}

func assignScalar(field reflect.Value, v cqlvalue.CQLValue) error {
	switch field.Type() {
	case typeOfInt32:
		if n, ok := v.AsInt(); ok {
			field.SetInt(int64(n))
			return nil
		}
		if n, ok := v.AsDate(); ok {
			field.SetInt(int64(n))
			return nil
		}
	case typeOfInt64:
		if n, ok := v.AsBigInt(); ok {
			field.SetInt(n)
			return nil
		}
		if n, ok := v.AsCounter(); ok {
			field.SetInt(n)
			return nil
		}
		if n, ok := v.AsTimestampMillis(); ok {
			field.SetInt(n)
			return nil
		}
	case typeOfInt16:
		if n, ok := v.AsSmallInt(); ok {
			field.SetInt(int64(n))
			return nil
		}
	case typeOfInt8:
		if n, ok := v.AsTinyInt(); ok {
			field.SetInt(int64(n))
			return nil
		}
	case typeOfBool:
		if b, ok := v.AsBoolean(); ok {
			field.SetBool(b)
			return nil
		}
	case typeOfString:
		if s, ok := v.AsText(); ok {
			field.SetString(s)
			return nil
		}
		if s, ok := v.AsAscii(); ok {
			field.SetString(s)
			return nil
		}
	case typeOfNetIP:
		if ip, ok := v.AsInet(); ok {
			field.Set(reflect.ValueOf(ip))
			return nil
		}
	case typeOfDuration:
		if d, ok := v.AsTime(); ok {
			field.Set(reflect.ValueOf(d))
			return nil
		}
	case typeOfTime:
		if t, ok := v.AsTimestamp(); ok {
			field.Set(reflect.ValueOf(t))
			return nil
		}
	}
	return &badConversion{field.Type()}
}

type badConversion struct{ t reflect.Type }

func (e *badConversion) Error() string {
	return "cannot convert CQL value to " + e.t.String()
}

// ValueList derives an ordered sequence of encoded parameter payloads from
// src, which must be a struct or a pointer to one. Field order, not field
// name, determines parameter position. A nil pointer field is bound as
// NULL; every other field is converted to its natural CQL column type and
// encoded via cqlvalue.WriteValue.
func ValueList(src interface{}) ([]request.Value, error) {
	srcValue := reflect.ValueOf(src)
	if srcValue.Kind() == reflect.Ptr {
		if srcValue.IsNil() {
			return nil, cqlerr.BadCQLVal(-1, "source must not be a nil pointer")
		}
		srcValue = srcValue.Elem()
	}
	fields := exportedFields(srcValue)
	values := make([]request.Value, len(fields))
	for i, field := range fields {
		v, err := fieldToValue(field)
		if err != nil {
			return nil, cqlerr.BadCQLVal(i, err.Error())
		}
		values[i] = v
	}
	return values, nil
}

func fieldToValue(field reflect.Value) (request.Value, error) {
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return request.NullValue(), nil
		}
		field = field.Elem()
	}
	cv, columnType, err := scalarToCQLValue(field)
	if err != nil {
		return request.Value{}, err
	}
	var buf bytes.Buffer
	if err := cqlvalue.WriteValue(columnType, cv, &buf); err != nil {
		return request.Value{}, err
	}
	return request.RegularValue(buf.Bytes()), nil
}

func scalarToCQLValue(field reflect.Value) (cqlvalue.CQLValue, *cqltype.ColumnType, error) {
	switch field.Type() {
	case typeOfInt32:
		return cqlvalue.NewInt(int32(field.Int())), cqltype.Scalar(cqltype.KindInt), nil
	case typeOfInt64:
		return cqlvalue.NewBigInt(field.Int()), cqltype.Scalar(cqltype.KindBigInt), nil
	case typeOfInt16:
		return cqlvalue.NewSmallInt(int16(field.Int())), cqltype.Scalar(cqltype.KindSmallInt), nil
	case typeOfInt8:
		return cqlvalue.NewTinyInt(int8(field.Int())), cqltype.Scalar(cqltype.KindTinyInt), nil
	case typeOfBool:
		return cqlvalue.NewBoolean(field.Bool()), cqltype.Scalar(cqltype.KindBoolean), nil
	case typeOfString:
		v, err := cqlvalue.NewText(field.String())
		return v, cqltype.Scalar(cqltype.KindText), err
	case typeOfNetIP:
		v, err := cqlvalue.NewInet(field.Interface().(net.IP))
		return v, cqltype.Scalar(cqltype.KindInet), err
	case typeOfDuration:
		return cqlvalue.NewTime(field.Interface().(time.Duration)), cqltype.Scalar(cqltype.KindTime), nil
	case typeOfTime:
		return cqlvalue.NewTimestamp(field.Interface().(time.Time)), cqltype.Scalar(cqltype.KindTimestamp), nil
	}
	return cqlvalue.CQLValue{}, nil, &badConversion{field.Type()}
}

// exportedFields returns structValue's exported fields in declaration
// order; unexported fields are skipped since they can't be set via
// reflection and carry no wire representation.
func exportedFields(structValue reflect.Value) []reflect.Value {
	structType := structValue.Type()
	fields := make([]reflect.Value, 0, structType.NumField())
	for i := 0; i < structType.NumField(); i++ {
		if structType.Field(i).PkgPath == "" {
			fields = append(fields, structValue.Field(i))
		}
	}
	return fields
}
