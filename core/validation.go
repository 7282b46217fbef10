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

import "fmt"

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - SourceId must not be empty
//   - Status must be a defined DocumentStatus
//
// NOT validated (populated by workers):
//   - Vector, Snippet, ContentLength (empty until processing completes)
//   - Error (empty unless failed)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrValidation)
	}

	if doc.SourceId == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptySourceId)
	}

	if err := ValidateDocumentStatus(doc.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

// ValidateJob validates an IngestionJob according to domain rules.
//
// Validation rules:
//   - FolderRef must not be empty
//   - TotalItems must be positive (a job is created with its items)
//   - counters must not exceed TotalItems
func ValidateJob(job *IngestionJob) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrValidation)
	}

	if job.FolderRef == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyFolderRef)
	}

	if job.TotalItems <= 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyItems)
	}

	if job.ProcessedItems+job.FailedItems > job.TotalItems {
		return fmt.Errorf("%w: counters exceed total items", ErrValidation)
	}

	return nil
}

// ValidateSession validates a ScanSession according to domain rules.
//
// Validation rules:
//   - FolderRef must not be empty
//   - ScannedItems must never exceed TotalItems once the total is known
func ValidateSession(session *ScanSession) error {
	if session == nil {
		return fmt.Errorf("%w: session is nil", ErrValidation)
	}

	if session.FolderRef == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyFolderRef)
	}

	if session.TotalItems > 0 && session.ScannedItems > session.TotalItems {
		return fmt.Errorf("%w: scanned items exceed total items", ErrValidation)
	}

	return nil
}

// ValidateDocumentStatus validates that a DocumentStatus has a defined value.
func ValidateDocumentStatus(status DocumentStatus) error {
	switch status {
	case DocumentPending, DocumentProcessing, DocumentCompleted, DocumentFailed:
		return nil
	}
	return fmt.Errorf("%w: document status %d", ErrInvalidStatus, status)
}

// ValidateJobStatus validates that a JobStatus has a defined value.
func ValidateJobStatus(status JobStatus) error {
	switch status {
	case JobPending, JobRunning, JobCompleted, JobFailed:
		return nil
	}
	return fmt.Errorf("%w: job status %d", ErrInvalidStatus, status)
}

// ValidateScanStatus validates that a ScanStatus has a defined value.
func ValidateScanStatus(status ScanStatus) error {
	switch status {
	case ScanPending, ScanRunning, ScanCompleted, ScanFailed, ScanPaused:
		return nil
	}
	return fmt.Errorf("%w: scan status %d", ErrInvalidStatus, status)
}
