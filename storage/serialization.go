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


package storage

import (
	"github.com/poiesic/docpipe/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	return id, err
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	buf := make([]byte, core.DocumentMUS.Size(*doc))
	core.DocumentMUS.Marshal(*doc, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	doc, _, err := core.DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// MarshalJob serializes an IngestionJob to bytes.
func MarshalJob(job *core.IngestionJob) []byte {
	buf := make([]byte, core.IngestionJobMUS.Size(*job))
	core.IngestionJobMUS.Marshal(*job, buf)
	return buf
}

// UnmarshalJob deserializes an IngestionJob from bytes.
func UnmarshalJob(data []byte) (*core.IngestionJob, error) {
	job, _, err := core.IngestionJobMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// MarshalLogEntry serializes a ProcessingLogEntry to bytes.
func MarshalLogEntry(entry *core.ProcessingLogEntry) []byte {
	buf := make([]byte, core.ProcessingLogEntryMUS.Size(*entry))
	core.ProcessingLogEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalLogEntry deserializes a ProcessingLogEntry from bytes.
func UnmarshalLogEntry(data []byte) (*core.ProcessingLogEntry, error) {
	entry, _, err := core.ProcessingLogEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarshalSession serializes a ScanSession to bytes.
func MarshalSession(session *core.ScanSession) []byte {
	buf := make([]byte, core.ScanSessionMUS.Size(*session))
	core.ScanSessionMUS.Marshal(*session, buf)
	return buf
}

// UnmarshalSession deserializes a ScanSession from bytes.
func UnmarshalSession(data []byte) (*core.ScanSession, error) {
	session, _, err := core.ScanSessionMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// MarshalProgress serializes a ScanProgressEntry to bytes.
func MarshalProgress(entry *core.ScanProgressEntry) []byte {
	buf := make([]byte, core.ScanProgressEntryMUS.Size(*entry))
	core.ScanProgressEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalProgress deserializes a ScanProgressEntry from bytes.
func UnmarshalProgress(data []byte) (*core.ScanProgressEntry, error) {
	entry, _, err := core.ScanProgressEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
