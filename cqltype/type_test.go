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

package cqltype_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassandra-native-driver/cql/cqlerr"
	"github.com/cassandra-native-driver/cql/cqltype"
	"github.com/cassandra-native-driver/cql/primitive"
)

func roundTrip(t *testing.T, in *cqltype.ColumnType) *cqltype.ColumnType {
	buf := &bytes.Buffer{}
	require.NoError(t, cqltype.WriteType(in, buf))
	c := primitive.NewCursor(buf.Bytes())
	out, err := cqltype.ParseType(c)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len(), "parse must consume exactly the bytes written")
	return out
}

func TestRoundTripScalars(t *testing.T) {
	for _, k := range []cqltype.Kind{
		cqltype.KindAscii, cqltype.KindBigInt, cqltype.KindBoolean, cqltype.KindCounter,
		cqltype.KindInt, cqltype.KindTimestamp, cqltype.KindText, cqltype.KindInet,
		cqltype.KindDate, cqltype.KindTime, cqltype.KindSmallInt, cqltype.KindTinyInt,
	} {
		in := cqltype.Scalar(k)
		out := roundTrip(t, in)
		assert.True(t, in.Equal(out), "%v", k)
	}
}

func TestRoundTripNestedCollection(t *testing.T) {
	// list<map<text, set<int>>>
	in := cqltype.NewList(cqltype.NewMap(cqltype.Scalar(cqltype.KindText), cqltype.NewSet(cqltype.Scalar(cqltype.KindInt))))
	out := roundTrip(t, in)
	assert.True(t, in.Equal(out))
}

func TestRoundTripUDT(t *testing.T) {
	in := cqltype.NewUDT("ks", "address", []cqltype.Field{
		{Name: "street", Type: cqltype.Scalar(cqltype.KindText)},
		{Name: "zip", Type: cqltype.Scalar(cqltype.KindInt)},
	})
	out := roundTrip(t, in)
	assert.True(t, in.Equal(out))
	assert.Equal(t, []string{"street", "zip"}, []string{out.Fields[0].Name, out.Fields[1].Name})
}

func TestRoundTripTuple(t *testing.T) {
	in := cqltype.NewTuple(cqltype.Scalar(cqltype.KindInt), cqltype.Scalar(cqltype.KindText))
	out := roundTrip(t, in)
	assert.True(t, in.Equal(out))
}

func TestUnknownTagFails(t *testing.T) {
	buf := &bytes.Buffer{}
	primitive.WriteShort(0x00FF, buf)
	c := primitive.NewCursor(buf.Bytes())
	_, err := cqltype.ParseType(c)
	require.Error(t, err)
	var tni cqlerr.TypeNotImplemented
	assert.ErrorAs(t, err, &tni)
	assert.Equal(t, cqlerr.TypeNotImplemented(0x00FF), tni)
}

func TestEqualDistinguishesListVsSet(t *testing.T) {
	list := cqltype.NewList(cqltype.Scalar(cqltype.KindInt))
	set := cqltype.NewSet(cqltype.Scalar(cqltype.KindInt))
	assert.False(t, list.Equal(set))
}
