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

package stream_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassandra-native-driver/cql/cqlframe"
	"github.com/cassandra-native-driver/cql/stream"
)

func TestAcquireAssignsDistinctStreamIDs(t *testing.T) {
	h := stream.NewHandler(context.Background(), "conn-1", 2, 1, time.Second)
	r1, err := h.Acquire(context.Background())
	require.NoError(t, err)
	r2, err := h.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, r1.StreamID(), r2.StreamID())
}

func TestAcquireBlocksUntilPoolHasRoom(t *testing.T) {
	h := stream.NewHandler(context.Background(), "conn-1", 1, 1, time.Second)
	r1, err := h.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = h.Acquire(ctx)
	require.Error(t, err, "pool of size 1 is exhausted until the first request is dispatched")

	require.NoError(t, h.Dispatch(&cqlframe.Frame{Header: &cqlframe.Header{StreamID: r1.StreamID()}}))

	r2, err := h.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, r1.StreamID(), r2.StreamID(), "the released id should be the one handed back out")
}

func TestDispatchDeliversFrameToWaitingRequest(t *testing.T) {
	h := stream.NewHandler(context.Background(), "conn-1", 4, 1, time.Second)
	req, err := h.Acquire(context.Background())
	require.NoError(t, err)

	f := &cqlframe.Frame{Header: &cqlframe.Header{StreamID: req.StreamID(), OpCode: cqlframe.OpCodeResult}, Body: []byte("ok")}
	require.NoError(t, h.Dispatch(f))

	got, ok := <-req.Frames()
	require.True(t, ok)
	assert.Equal(t, f, got)
	_, stillOpen := <-req.Frames()
	assert.False(t, stillOpen)
	assert.NoError(t, req.Err())
}

func TestDispatchToUnknownStreamIDFails(t *testing.T) {
	h := stream.NewHandler(context.Background(), "conn-1", 4, 1, time.Second)
	err := h.Dispatch(&cqlframe.Frame{Header: &cqlframe.Header{StreamID: 99}})
	require.Error(t, err)
}

func TestRequestTimesOutWithoutAResponse(t *testing.T) {
	h := stream.NewHandler(context.Background(), "conn-1", 4, 1, 20*time.Millisecond)
	req, err := h.Acquire(context.Background())
	require.NoError(t, err)

	_, ok := <-req.Frames()
	assert.False(t, ok)
	require.Error(t, req.Err())
}

func TestCloseFailsRequestsStillInFlight(t *testing.T) {
	h := stream.NewHandler(context.Background(), "conn-1", 4, 1, time.Second)
	req, err := h.Acquire(context.Background())
	require.NoError(t, err)

	h.Close()

	_, ok := <-req.Frames()
	assert.False(t, ok)
	require.Error(t, req.Err())

	_, err = h.Acquire(context.Background())
	require.Error(t, err)
}

func TestAcquireCanceledByContext(t *testing.T) {
	h := stream.NewHandler(context.Background(), "conn-1", 1, 1, time.Second)
	_, err := h.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Acquire(ctx)
	require.Error(t, err)
}
