// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"errors"
	"fmt"
)

// Error taxonomy for the pipeline. Every failure a worker or scanner sees
// falls into one of these classes, which determines the retry behavior:
// validation errors are rejected immediately, transient errors are retried
// with backoff, permanent errors are recorded and never retried.
var (
	// ErrValidation indicates bad creation input (empty item set, missing
	// folder ref). Rejected immediately, never retried.
	ErrValidation = errors.New("validation failed")

	// ErrTransient indicates a collaborator timeout or network issue.
	// Retried per policy with exponential backoff.
	ErrTransient = errors.New("transient failure")

	// ErrPermanent indicates malformed or unsupported content.
	// Recorded on the document, never retried.
	ErrPermanent = errors.New("permanent failure")
)

// Domain validation errors
var (
	// ErrEmptyItems indicates a job was created with no items.
	ErrEmptyItems = errors.New("item set cannot be empty")

	// ErrEmptyFolderRef indicates a missing source folder reference.
	ErrEmptyFolderRef = errors.New("folder reference cannot be empty")

	// ErrEmptySourceId indicates a document without a source item reference.
	ErrEmptySourceId = errors.New("source id cannot be empty")

	// ErrInvalidStatus indicates a status value outside the defined set.
	ErrInvalidStatus = errors.New("invalid status")
)

// MarkTransient wraps err so IsTransient reports true for it.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// MarkPermanent wraps err so IsPermanent reports true for it.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsPermanent reports whether err is classified as never-retryable.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// IsValidation reports whether err is a creation-input rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
