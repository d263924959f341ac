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

package cqlvalue_test

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassandra-native-driver/cql/cqlerr"
	"github.com/cassandra-native-driver/cql/cqltype"
	"github.com/cassandra-native-driver/cql/cqlvalue"
	"github.com/cassandra-native-driver/cql/primitive"
)

func roundTrip(t *testing.T, typ *cqltype.ColumnType, in cqlvalue.CQLValue) cqlvalue.CQLValue {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, cqlvalue.WriteValue(typ, in, buf))
	c := primitive.NewCursor(buf.Bytes())
	out, err := cqlvalue.ParseValue(typ, c)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	return out
}

func TestRoundTripScalars(t *testing.T) {
	ascii, err := cqlvalue.NewAscii("hello")
	require.NoError(t, err)
	text, err := cqlvalue.NewText("héllo wörld")
	require.NoError(t, err)
	inet, err := cqlvalue.NewInet(net.ParseIP("192.0.2.1"))
	require.NoError(t, err)

	cases := []struct {
		name string
		typ  *cqltype.ColumnType
		val  cqlvalue.CQLValue
	}{
		{"int", cqltype.Scalar(cqltype.KindInt), cqlvalue.NewInt(-42)},
		{"bigint", cqltype.Scalar(cqltype.KindBigInt), cqlvalue.NewBigInt(-9223372036854775808)},
		{"counter-negative", cqltype.Scalar(cqltype.KindCounter), cqlvalue.NewCounter(-7)},
		{"smallint", cqltype.Scalar(cqltype.KindSmallInt), cqlvalue.NewSmallInt(-1)},
		{"tinyint", cqltype.Scalar(cqltype.KindTinyInt), cqlvalue.NewTinyInt(-1)},
		{"boolean", cqltype.Scalar(cqltype.KindBoolean), cqlvalue.NewBoolean(true)},
		{"ascii", cqltype.Scalar(cqltype.KindAscii), ascii},
		{"text", cqltype.Scalar(cqltype.KindText), text},
		{"date", cqltype.Scalar(cqltype.KindDate), cqlvalue.NewDate(-1)},
		{"time", cqltype.Scalar(cqltype.KindTime), cqlvalue.NewTime(12 * time.Hour)},
		{"timestamp", cqltype.Scalar(cqltype.KindTimestamp), cqlvalue.NewTimestampMillis(1_700_000_000_000)},
		{"inet", cqltype.Scalar(cqltype.KindInet), inet},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := roundTrip(t, c.typ, c.val)
			assert.True(t, c.val.Equal(out))
		})
	}
}

func TestDateIsNotBiasedByEpochMidpoint(t *testing.T) {
	// Spec resolves the epoch-bias open question in favor of a direct
	// two's-complement read: days_since_unix_epoch == read_i32().
	v, err := cqlvalue.ParseValue(cqltype.Scalar(cqltype.KindDate), primitive.NewCursor([]byte{0xff, 0xff, 0xff, 0xff}))
	require.NoError(t, err)
	days, ok := v.AsDate()
	require.True(t, ok)
	assert.Equal(t, int32(-1), days)
}

func TestAsciiRejectsHighBitByte(t *testing.T) {
	_, err := cqlvalue.NewAscii("café")
	require.Error(t, err)
	var bd cqlerr.BadData
	assert.ErrorAs(t, err, &bd)
}

func TestTextRejectsInvalidUTF8(t *testing.T) {
	typ := cqltype.Scalar(cqltype.KindText)
	c := primitive.NewCursor([]byte{0xff, 0xfe})
	_, err := cqlvalue.ParseValue(typ, c)
	require.Error(t, err)
	var bd cqlerr.BadData
	assert.ErrorAs(t, err, &bd)
}

func TestIntRejectsWrongLength(t *testing.T) {
	typ := cqltype.Scalar(cqltype.KindInt)
	c := primitive.NewCursor([]byte{0x00, 0x00, 0x00})
	_, err := cqlvalue.ParseValue(typ, c)
	require.Error(t, err)
}

func TestInetRejectsOddLength(t *testing.T) {
	_, err := cqlvalue.NewInet(net.IP{1, 2, 3})
	require.Error(t, err)
}

func TestInetIPv6RoundTrip(t *testing.T) {
	ip := net.ParseIP("2001:db8::1")
	in, err := cqlvalue.NewInet(ip)
	require.NoError(t, err)
	out := roundTrip(t, cqltype.Scalar(cqltype.KindInet), in)
	gotIP, ok := out.AsInet()
	require.True(t, ok)
	assert.True(t, ip.Equal(gotIP))
}

func TestListRoundTrip(t *testing.T) {
	typ := cqltype.NewList(cqltype.Scalar(cqltype.KindInt))
	in := cqlvalue.NewList([]cqlvalue.CQLValue{cqlvalue.NewInt(1), cqlvalue.NewInt(2), cqlvalue.NewInt(3)})
	out := roundTrip(t, typ, in)
	assert.True(t, in.Equal(out))
}

func TestSetVsListAreDistinctKinds(t *testing.T) {
	list := cqlvalue.NewList(nil)
	set := cqlvalue.NewSet(nil)
	assert.False(t, list.Equal(set))
}

func TestMapRoundTrip(t *testing.T) {
	typ := cqltype.NewMap(cqltype.Scalar(cqltype.KindText), cqltype.Scalar(cqltype.KindInt))
	k1, _ := cqlvalue.NewText("a")
	k2, _ := cqlvalue.NewText("b")
	in := cqlvalue.NewMap([]cqlvalue.MapEntry{
		{Key: k1, Value: cqlvalue.NewInt(1)},
		{Key: k2, Value: cqlvalue.NewInt(2)},
	})
	out := roundTrip(t, typ, in)
	assert.True(t, in.Equal(out))
}

func TestUDTRoundTripWithAbsentField(t *testing.T) {
	typ := cqltype.NewUDT("ks", "address", []cqltype.Field{
		{Name: "street", Type: cqltype.Scalar(cqltype.KindText)},
		{Name: "zip", Type: cqltype.Scalar(cqltype.KindInt)},
	})
	street, _ := cqlvalue.NewText("Main St")
	in := cqlvalue.NewUDT(&cqlvalue.UDTValue{
		Keyspace: "ks",
		TypeName: "address",
		Fields: []cqlvalue.UDTField{
			{Name: "street", Value: &street},
			{Name: "zip", Value: nil}, // absent field decodes to None
		},
	})
	out := roundTrip(t, typ, in)
	assert.True(t, in.Equal(out))
	gotUDT, ok := out.AsUDT()
	require.True(t, ok)
	assert.Nil(t, gotUDT.Fields[1].Value)
}

func TestTupleRoundTripWithNullElement(t *testing.T) {
	typ := cqltype.NewTuple(cqltype.Scalar(cqltype.KindInt), cqltype.Scalar(cqltype.KindText))
	first := cqlvalue.NewInt(7)
	in := cqlvalue.NewTuple([]*cqlvalue.CQLValue{&first, nil})
	out := roundTrip(t, typ, in)
	assert.True(t, in.Equal(out))
}

func TestTupleFewerPayloadsThanTypesIsError(t *testing.T) {
	typ := cqltype.NewTuple(cqltype.Scalar(cqltype.KindInt), cqltype.Scalar(cqltype.KindText))
	buf := &bytes.Buffer{}
	primitive.WriteBytes([]byte{0, 0, 0, 1}, buf) // only one of two declared elements
	c := primitive.NewCursor(buf.Bytes())
	_, err := cqlvalue.ParseValue(typ, c)
	require.Error(t, err)
}

func TestUnknownKindFailsToParse(t *testing.T) {
	typ := &cqltype.ColumnType{Kind: cqltype.Kind(0x00ff)}
	c := primitive.NewCursor(nil)
	_, err := cqlvalue.ParseValue(typ, c)
	require.Error(t, err)
	var tni cqlerr.TypeNotImplemented
	assert.ErrorAs(t, err, &tni)
}
