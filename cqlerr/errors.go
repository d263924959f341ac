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

// Package cqlerr collects the error taxonomy shared by every decode and
// projection boundary in this module, so that callers can type-switch on a
// closed set of error kinds instead of matching error strings.
package cqlerr

import (
	"errors"
	"fmt"
)

// ErrShortRead is returned whenever a read would consume past the end of
// the cursor's buffer. It is never wrapped with extra context because the
// cursor position alone does not localize the failure usefully; callers
// that need localization should attach it themselves (see BadCQLVal).
var ErrShortRead = errors.New("short read: input ended mid-field")

// BadData reports a structurally valid length whose payload is semantically
// invalid: bad UTF-8, non-ASCII bytes in an Ascii value, a fixed-width
// scalar of the wrong length, an unrecognized RESULT kind, a negative count
// where a non-negative one is required, and so on.
type BadData string

func (e BadData) Error() string {
	return "bad data: " + string(e)
}

// TypeNotImplemented is returned when the type descriptor parser encounters
// a wire tag that isn't one of the ColumnType cases this module knows how
// to decode. It is reserved for forward compatibility: callers may choose
// to skip the affected row/column or abort outright.
type TypeNotImplemented uint16

func (e TypeNotImplemented) Error() string {
	return fmt.Sprintf("type not implemented: tag 0x%04x", uint16(e))
}

// FromRowError is returned by the row-projection layer (package rowproj)
// when a Row cannot be mapped onto an application record.
type FromRowError struct {
	// WrongSize is true when the row's column count doesn't match the
	// record's declared shape; Expected/Actual are then populated and
	// ColumnIndex/Reason are not.
	WrongSize bool
	Expected  int
	Actual    int

	// Otherwise, ColumnIndex/Reason describe which column failed to convert
	// and why.
	ColumnIndex int
	Reason      string
}

func (e *FromRowError) Error() string {
	if e.WrongSize {
		return fmt.Sprintf("wrong row size: expected %d columns, got %d", e.Expected, e.Actual)
	}
	return fmt.Sprintf("bad CQL value at column %d: %s", e.ColumnIndex, e.Reason)
}

func WrongRowSize(expected, actual int) *FromRowError {
	return &FromRowError{WrongSize: true, Expected: expected, Actual: actual}
}

func BadCQLVal(columnIndex int, reason string) *FromRowError {
	return &FromRowError{ColumnIndex: columnIndex, Reason: reason}
}

// EncodeError is returned by the request encoder (package request) when a
// request cannot be encoded for the negotiated protocol.
type EncodeError struct {
	Unsupported bool
	Reason      string
}

func (e *EncodeError) Error() string {
	return "encode: " + e.Reason
}

func Unsupported(reason string) *EncodeError {
	return &EncodeError{Unsupported: true, Reason: reason}
}

// ServerError models an ERROR response frame (§6 of the protocol). Code
// 0x2500 ("Unprepared") is surfaced as UnpreparedError instead, since it
// drives automatic recovery (package prepared) rather than being a terminal
// failure.
type ServerError struct {
	Code    int32
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error 0x%04x: %s", e.Code, e.Message)
}

const UnpreparedErrorCode int32 = 0x2500

// UnpreparedError is the distinguished ERROR sub-kind carrying the unknown
// prepared-statement id the server rejected. The prepared-statement state
// machine (package prepared) catches this to trigger a single re-PREPARE
// and retry.
type UnpreparedError struct {
	Message   string
	UnknownID []byte
}

func (e *UnpreparedError) Error() string {
	return fmt.Sprintf("unprepared statement: %s", e.Message)
}
