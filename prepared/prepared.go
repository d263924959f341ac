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

// Package prepared implements the prepared-statement lifecycle: a query
// string moves from absent, to ready once PREPAREd, and back to absent
// (triggering one re-PREPARE) the moment the server reports it no longer
// recognizes the statement's id. It knows nothing about the connection
// itself; callers supply the PREPARE and EXECUTE actions.
package prepared

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cassandra-native-driver/cql/cqlerr"
	"github.com/cassandra-native-driver/cql/metadata"
)

// State is the observable lifecycle state of a Statement.
type State int

const (
	StateAbsent State = iota
	StateReady
)

// PrepareFunc performs a PREPARE for query and returns the server's
// identifying state.
type PrepareFunc func(ctx context.Context, query string) (id []byte, variables *metadata.PreparedMetadata, results *metadata.ResultMetadata, err error)

// ExecuteFunc runs an EXECUTE against the given prepared id, returning
// *cqlerr.UnpreparedError when the server has forgotten that id.
type ExecuteFunc func(ctx context.Context, id []byte) (interface{}, error)

// Statement tracks one query string's prepared-id lifecycle across
// reconnects and server-side cache evictions. It is not safe for concurrent
// use by multiple goroutines without external synchronization, mirroring
// the fact that a single EXECUTE path drives it at a time.
type Statement struct {
	query   string
	state   State
	id      []byte
	varMeta *metadata.PreparedMetadata
	resMeta *metadata.ResultMetadata
}

func NewStatement(query string) *Statement {
	return &Statement{query: query, state: StateAbsent}
}

func (s *Statement) State() State                            { return s.state }
func (s *Statement) ID() []byte                               { return s.id }
func (s *Statement) VariablesMetadata() *metadata.PreparedMetadata { return s.varMeta }
func (s *Statement) ResultMetadata() *metadata.ResultMetadata { return s.resMeta }

func (s *Statement) String() string {
	return fmt.Sprintf("prepared statement %q", s.query)
}

// Prepare runs PrepareFunc and transitions the statement to StateReady.
func (s *Statement) Prepare(ctx context.Context, prepare PrepareFunc) error {
	id, varMeta, resMeta, err := prepare(ctx, s.query)
	if err != nil {
		return fmt.Errorf("%v: prepare failed: %w", s, err)
	}
	s.id = id
	s.varMeta = varMeta
	s.resMeta = resMeta
	s.state = StateReady
	log.Debug().Msgf("%v: prepared with id %x", s, id)
	return nil
}

// Execute runs the statement, transparently re-preparing once if the
// server reports the current id unprepared. If the statement has never
// been prepared, it is prepared first. A second consecutive unprepared-id
// failure (the re-prepared id is rejected again) is returned as a fatal
// error rather than retried again, per the two-strikes rule.
func (s *Statement) Execute(ctx context.Context, prepare PrepareFunc, execute ExecuteFunc) (interface{}, error) {
	if s.state == StateAbsent {
		if err := s.Prepare(ctx, prepare); err != nil {
			return nil, err
		}
	}
	result, err := execute(ctx, s.id)
	if err == nil {
		return result, nil
	}
	unprepared, ok := asUnprepared(err)
	if !ok {
		return nil, err
	}
	if !bytes.Equal(unprepared.UnknownID, s.id) {
		return nil, fmt.Errorf("%v: unprepared error for id %x, but statement is currently bound to %x: %w", s, unprepared.UnknownID, s.id, err)
	}
	log.Debug().Msgf("%v: server reported id %x unprepared, re-preparing", s, s.id)
	s.state = StateAbsent
	if err := s.Prepare(ctx, prepare); err != nil {
		return nil, fmt.Errorf("%v: re-prepare after unprepared-id error failed: %w", s, err)
	}
	result, err = execute(ctx, s.id)
	if err == nil {
		return result, nil
	}
	if _, ok := asUnprepared(err); ok {
		s.state = StateAbsent
		return nil, fmt.Errorf("%v: fatal: server rejected id as unprepared twice in a row: %w", s, err)
	}
	return nil, err
}

func asUnprepared(err error) (*cqlerr.UnpreparedError, bool) {
	var u *cqlerr.UnpreparedError
	ok := errors.As(err, &u)
	return u, ok
}
