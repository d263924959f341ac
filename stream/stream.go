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

// Package stream implements the asynchronous request/response multiplexer
// that sits between a single TCP connection and the callers issuing
// concurrent requests over it: a finite pool of stream ids and an in-flight
// table that correlates each inbound frame back to the caller awaiting it.
//
// A connection's transport (dialing, reconnection, topology) is explicitly
// not this package's concern; Handler only needs something that can hand it
// a decoded cqlframe.Frame as frames arrive.
package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cassandra-native-driver/cql/cqlframe"
)

// DefaultPoolSize is the number of concurrently usable stream ids, matching
// the CQL binary protocol's 16-bit signed stream id space reserved for
// driver use (negative ids are reserved for server-initiated pushes).
const DefaultPoolSize = 32768

// Handler owns a connection's stream-id pool and its table of requests
// awaiting a response. One Handler serves one connection.
type Handler struct {
	connID      string
	ctx         context.Context
	poolSize    int
	pending     int
	timeout     time.Duration
	streamIDs   chan int16
	inFlight    map[int16]*InFlightRequest
	inFlightMu  sync.RWMutex
	closed      int32
}

func (h *Handler) String() string {
	return fmt.Sprintf("%s: [stream handler]", h.connID)
}

// NewHandler builds a Handler with poolSize usable stream ids (0..poolSize-1),
// each awaited request buffering up to pending frames before it is
// considered to have overflowed, and timeout as the per-request deadline
// for its response. The timer starts when the id is acquired and is not
// reset; the first frame delivered completes the request.
func NewHandler(ctx context.Context, connID string, poolSize, pending int, timeout time.Duration) *Handler {
	h := &Handler{
		connID:    connID,
		ctx:       ctx,
		poolSize:  poolSize,
		pending:   pending,
		timeout:   timeout,
		streamIDs: make(chan int16, poolSize),
		inFlight:  make(map[int16]*InFlightRequest, poolSize),
	}
	for i := 0; i < poolSize; i++ {
		h.streamIDs <- int16(i)
	}
	return h
}

// Acquire blocks until a stream id is available or ctx is done, then
// registers a new InFlightRequest for it.
func (h *Handler) Acquire(ctx context.Context) (*InFlightRequest, error) {
	if h.isClosed() {
		return nil, fmt.Errorf("%s: handler closed", h)
	}
	select {
	case id, ok := <-h.streamIDs:
		if !ok {
			return nil, fmt.Errorf("%s: handler closed", h)
		}
		log.Debug().Msgf("%s: acquired stream id %d", h, id)
		return h.register(id)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.ctx.Done():
		return nil, h.ctx.Err()
	}
}

func (h *Handler) register(streamID int16) (*InFlightRequest, error) {
	req := newInFlightRequest(h.String(), streamID, h.ctx, h.pending, h.timeout)
	h.inFlightMu.Lock()
	defer h.inFlightMu.Unlock()
	if h.isClosed() {
		return nil, fmt.Errorf("%s: handler closed", h)
	}
	h.inFlight[streamID] = req
	req.startTimeout()
	return req, nil
}

// Dispatch routes a decoded frame to the request awaiting its stream id.
// Release of the stream id back to the pool happens eagerly here, on
// receipt, rather than on caller cancellation: a caller that stops reading
// must not strand the id held by the connection.
func (h *Handler) Dispatch(f *cqlframe.Frame) error {
	if h.isClosed() {
		return fmt.Errorf("%s: handler closed", h)
	}
	streamID := f.Header.StreamID
	h.inFlightMu.RLock()
	req, found := h.inFlight[streamID]
	h.inFlightMu.RUnlock()
	if !found {
		return fmt.Errorf("%s: unknown stream id %d", h, streamID)
	}
	h.release(streamID)
	return req.deliver(f)
}

func (h *Handler) release(streamID int16) {
	h.inFlightMu.Lock()
	delete(h.inFlight, streamID)
	h.inFlightMu.Unlock()
	select {
	case h.streamIDs <- streamID:
		log.Debug().Msgf("%s: released stream id %d", h, streamID)
	default:
		log.Error().Msgf("%s: stream id %d: release failed, pool is full", h, streamID)
	}
}

func (h *Handler) isClosed() bool { return atomic.LoadInt32(&h.closed) == 1 }

// Close fails every request still in flight and stops accepting new ones.
func (h *Handler) Close() {
	if !atomic.CompareAndSwapInt32(&h.closed, 0, 1) {
		return
	}
	log.Trace().Msgf("%s: closing", h)
	h.inFlightMu.Lock()
	for streamID, req := range h.inFlight {
		delete(h.inFlight, streamID)
		req.fail(fmt.Errorf("%s: handler closed", h))
	}
	h.inFlightMu.Unlock()
}

// InFlightRequest is the caller-facing handle for a single outstanding
// request: read Frames until it's closed, then check Err.
type InFlightRequest struct {
	handlerID string
	streamID  int16
	frames    chan *cqlframe.Frame
	ctx       context.Context
	cancel    context.CancelFunc
	timeout   time.Duration

	mu            sync.RWMutex
	timeoutCancel context.CancelFunc
	done          bool
	err           error
}

func newInFlightRequest(handlerID string, streamID int16, parent context.Context, pending int, timeout time.Duration) *InFlightRequest {
	ctx, cancel := context.WithCancel(parent)
	return &InFlightRequest{
		handlerID: handlerID,
		streamID:  streamID,
		frames:    make(chan *cqlframe.Frame, pending),
		ctx:       ctx,
		cancel:    cancel,
		timeout:   timeout,
	}
}

func (r *InFlightRequest) String() string {
	return fmt.Sprintf("%s [stream id %d]", r.handlerID, r.streamID)
}

// StreamID returns the wire stream id this request was assigned.
func (r *InFlightRequest) StreamID() int16 { return r.streamID }

// Frames is the channel of response frames for this request; it is closed
// once the request is done (see Err for the reason, if any).
func (r *InFlightRequest) Frames() <-chan *cqlframe.Frame { return r.frames }

// Err reports why the request ended, or nil on a clean single-frame
// response. Only meaningful after Frames is closed.
func (r *InFlightRequest) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

func (r *InFlightRequest) deliver(f *cqlframe.Frame) error {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return fmt.Errorf("%s: request already closed", r)
	}
	select {
	case r.frames <- f:
		r.mu.Unlock()
		r.close(nil)
		return nil
	default:
		r.mu.Unlock()
		err := fmt.Errorf("%s: too many pending frames", r)
		r.close(err)
		return err
	}
}

func (r *InFlightRequest) fail(err error) { r.close(err) }

func (r *InFlightRequest) startTimeout() {
	timeoutCtx, cancel := context.WithTimeout(r.ctx, r.timeout)
	r.mu.Lock()
	r.timeoutCancel = cancel
	r.mu.Unlock()
	go func() {
		<-timeoutCtx.Done()
		if timeoutCtx.Err() == context.DeadlineExceeded {
			r.close(fmt.Errorf("%s: timed out waiting for a response", r))
		}
	}()
}

func (r *InFlightRequest) close(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	if r.timeoutCancel != nil {
		r.timeoutCancel()
	}
	r.cancel()
	r.err = err
	r.done = true
	close(r.frames)
}
