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
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for every persisted type. Fields are marshalled in struct
// order; timestamps travel as Unix microseconds with 0 meaning the zero time.
// Adding fields is append-only to keep old rows readable.

// IDMUS serializes an ID.
var IDMUS = idMUS{}

type idMUS struct{}

func (idMUS) Marshal(id ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (id ID, n int, err error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(id ID) (size int) {
	return varint.Uint64.Size(uint64(id))
}

// timeMUS serializes a time.Time as Unix microseconds.
// The zero time marshals to 0 and round-trips back to the zero time.
var timeMUS = tMUS{}

type tMUS struct{}

func (tMUS) Marshal(t time.Time, bs []byte) (n int) {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Marshal(micros, bs)
}

func (tMUS) Unmarshal(bs []byte) (t time.Time, n int, err error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || micros == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func (tMUS) Size(t time.Time) (size int) {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Size(micros)
}

// vectorMUS serializes an embedding vector as a length-prefixed float32 run.
var vectorMUS = vecMUS{}

type vecMUS struct{}

func (vecMUS) Marshal(v []float32, bs []byte) (n int) {
	n = varint.PositiveInt.Marshal(len(v), bs)
	for _, f := range v {
		n += varint.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (vecMUS) Unmarshal(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}
	v = make([]float32, length)
	var n1 int
	for i := 0; i < length; i++ {
		v[i], n1, err = varint.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func (vecMUS) Size(v []float32) (size int) {
	size = varint.PositiveInt.Size(len(v))
	for _, f := range v {
		size += varint.Float32.Size(f)
	}
	return size
}

// detailMUS serializes the structured detail map on log entries.
var detailMUS = dMUS{}

type dMUS struct{}

func (dMUS) Marshal(m map[string]string, bs []byte) (n int) {
	n = varint.PositiveInt.Marshal(len(m), bs)
	for k, v := range m {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(v, bs[n:])
	}
	return n
}

func (dMUS) Unmarshal(bs []byte) (m map[string]string, n int, err error) {
	length, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	m = make(map[string]string, length)
	var (
		k, v string
		n1   int
	)
	for i := 0; i < length; i++ {
		k, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		v, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		m[k] = v
	}
	return m, n, nil
}

func (dMUS) Size(m map[string]string) (size int) {
	size = varint.PositiveInt.Size(len(m))
	for k, v := range m {
		size += ord.String.Size(k)
		size += ord.String.Size(v)
	}
	return size
}

// DocumentMUS serializes a Document.
var DocumentMUS = documentMUS{}

type documentMUS struct{}

func (documentMUS) Marshal(d Document, bs []byte) (n int) {
	n = IDMUS.Marshal(d.Id, bs)
	n += ord.String.Marshal(d.SourceId, bs[n:])
	n += ord.String.Marshal(d.Name, bs[n:])
	n += ord.String.Marshal(d.MimeType, bs[n:])
	n += ord.String.Marshal(d.SourceURL, bs[n:])
	n += varint.Int.Marshal(int(d.Status), bs[n:])
	n += ord.String.Marshal(d.Error, bs[n:])
	n += IDMUS.Marshal(d.JobId, bs[n:])
	n += varint.Int64.Marshal(d.Size, bs[n:])
	n += varint.Int.Marshal(d.ContentLength, bs[n:])
	n += ord.String.Marshal(d.Snippet, bs[n:])
	n += ord.String.Marshal(d.VersionMarker, bs[n:])
	n += vectorMUS.Marshal(d.Vector, bs[n:])
	n += timeMUS.Marshal(d.InsertedAt, bs[n:])
	n += timeMUS.Marshal(d.UpdatedAt, bs[n:])
	n += timeMUS.Marshal(d.ProcessedAt, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (d Document, n int, err error) {
	var (
		n1 int
		st int
	)
	d.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	if d.SourceId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Name, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.MimeType, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.SourceURL, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if st, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	d.Status = DocumentStatus(st)
	n += n1
	if d.Error, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.JobId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Size, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.ContentLength, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Snippet, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.VersionMarker, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.InsertedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.UpdatedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.ProcessedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	return d, n, nil
}

func (documentMUS) Size(d Document) (size int) {
	size = IDMUS.Size(d.Id)
	size += ord.String.Size(d.SourceId)
	size += ord.String.Size(d.Name)
	size += ord.String.Size(d.MimeType)
	size += ord.String.Size(d.SourceURL)
	size += varint.Int.Size(int(d.Status))
	size += ord.String.Size(d.Error)
	size += IDMUS.Size(d.JobId)
	size += varint.Int64.Size(d.Size)
	size += varint.Int.Size(d.ContentLength)
	size += ord.String.Size(d.Snippet)
	size += ord.String.Size(d.VersionMarker)
	size += vectorMUS.Size(d.Vector)
	size += timeMUS.Size(d.InsertedAt)
	size += timeMUS.Size(d.UpdatedAt)
	size += timeMUS.Size(d.ProcessedAt)
	return size
}

// IngestionJobMUS serializes an IngestionJob.
var IngestionJobMUS = ingestionJobMUS{}

type ingestionJobMUS struct{}

func (ingestionJobMUS) Marshal(j IngestionJob, bs []byte) (n int) {
	n = IDMUS.Marshal(j.Id, bs)
	n += ord.String.Marshal(j.FolderRef, bs[n:])
	n += varint.Int.Marshal(int(j.Status), bs[n:])
	n += varint.Int.Marshal(j.TotalItems, bs[n:])
	n += varint.Int.Marshal(j.ProcessedItems, bs[n:])
	n += varint.Int.Marshal(j.FailedItems, bs[n:])
	n += ord.String.Marshal(j.Error, bs[n:])
	n += timeMUS.Marshal(j.StartedAt, bs[n:])
	n += timeMUS.Marshal(j.CompletedAt, bs[n:])
	return n
}

func (ingestionJobMUS) Unmarshal(bs []byte) (j IngestionJob, n int, err error) {
	var (
		n1 int
		st int
	)
	j.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	if j.FolderRef, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + n1, err
	}
	n += n1
	if st, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return j, n + n1, err
	}
	j.Status = JobStatus(st)
	n += n1
	if j.TotalItems, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return j, n + n1, err
	}
	n += n1
	if j.ProcessedItems, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return j, n + n1, err
	}
	n += n1
	if j.FailedItems, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return j, n + n1, err
	}
	n += n1
	if j.Error, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + n1, err
	}
	n += n1
	if j.StartedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return j, n + n1, err
	}
	n += n1
	if j.CompletedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return j, n + n1, err
	}
	n += n1
	return j, n, nil
}

func (ingestionJobMUS) Size(j IngestionJob) (size int) {
	size = IDMUS.Size(j.Id)
	size += ord.String.Size(j.FolderRef)
	size += varint.Int.Size(int(j.Status))
	size += varint.Int.Size(j.TotalItems)
	size += varint.Int.Size(j.ProcessedItems)
	size += varint.Int.Size(j.FailedItems)
	size += ord.String.Size(j.Error)
	size += timeMUS.Size(j.StartedAt)
	size += timeMUS.Size(j.CompletedAt)
	return size
}

// ProcessingLogEntryMUS serializes a ProcessingLogEntry.
var ProcessingLogEntryMUS = processingLogEntryMUS{}

type processingLogEntryMUS struct{}

func (processingLogEntryMUS) Marshal(e ProcessingLogEntry, bs []byte) (n int) {
	n = IDMUS.Marshal(e.Id, bs)
	n += IDMUS.Marshal(e.DocumentId, bs[n:])
	n += IDMUS.Marshal(e.JobId, bs[n:])
	n += varint.Int.Marshal(int(e.Level), bs[n:])
	n += ord.String.Marshal(e.Message, bs[n:])
	n += detailMUS.Marshal(e.Detail, bs[n:])
	n += timeMUS.Marshal(e.CreatedAt, bs[n:])
	return n
}

func (processingLogEntryMUS) Unmarshal(bs []byte) (e ProcessingLogEntry, n int, err error) {
	var (
		n1  int
		lvl int
	)
	e.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	if e.DocumentId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.JobId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if lvl, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	e.Level = LogLevel(lvl)
	n += n1
	if e.Message, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Detail, n1, err = detailMUS.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.CreatedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	return e, n, nil
}

func (processingLogEntryMUS) Size(e ProcessingLogEntry) (size int) {
	size = IDMUS.Size(e.Id)
	size += IDMUS.Size(e.DocumentId)
	size += IDMUS.Size(e.JobId)
	size += varint.Int.Size(int(e.Level))
	size += ord.String.Size(e.Message)
	size += detailMUS.Size(e.Detail)
	size += timeMUS.Size(e.CreatedAt)
	return size
}

// ScanSessionMUS serializes a ScanSession.
var ScanSessionMUS = scanSessionMUS{}

type scanSessionMUS struct{}

func (scanSessionMUS) Marshal(s ScanSession, bs []byte) (n int) {
	n = IDMUS.Marshal(s.Id, bs)
	n += ord.String.Marshal(s.FolderRef, bs[n:])
	n += varint.Int.Marshal(int(s.Mode), bs[n:])
	n += varint.Int.Marshal(int(s.Status), bs[n:])
	n += varint.Int.Marshal(s.TotalItems, bs[n:])
	n += varint.Int.Marshal(s.ScannedItems, bs[n:])
	n += varint.Int.Marshal(s.NewItems, bs[n:])
	n += varint.Int.Marshal(s.ChangedItems, bs[n:])
	n += varint.Int64.Marshal(s.TotalSize, bs[n:])
	n += ord.String.Marshal(s.Error, bs[n:])
	n += timeMUS.Marshal(s.StartedAt, bs[n:])
	n += timeMUS.Marshal(s.CompletedAt, bs[n:])
	return n
}

func (scanSessionMUS) Unmarshal(bs []byte) (s ScanSession, n int, err error) {
	var (
		n1 int
		v  int
	)
	s.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	if s.FolderRef, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if v, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	s.Mode = ScanMode(v)
	n += n1
	if v, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	s.Status = ScanStatus(v)
	n += n1
	if s.TotalItems, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.ScannedItems, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.NewItems, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.ChangedItems, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.TotalSize, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.Error, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.StartedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.CompletedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	return s, n, nil
}

func (scanSessionMUS) Size(s ScanSession) (size int) {
	size = IDMUS.Size(s.Id)
	size += ord.String.Size(s.FolderRef)
	size += varint.Int.Size(int(s.Mode))
	size += varint.Int.Size(int(s.Status))
	size += varint.Int.Size(s.TotalItems)
	size += varint.Int.Size(s.ScannedItems)
	size += varint.Int.Size(s.NewItems)
	size += varint.Int.Size(s.ChangedItems)
	size += varint.Int64.Size(s.TotalSize)
	size += ord.String.Size(s.Error)
	size += timeMUS.Size(s.StartedAt)
	size += timeMUS.Size(s.CompletedAt)
	return size
}

// ScanProgressEntryMUS serializes a ScanProgressEntry.
var ScanProgressEntryMUS = scanProgressEntryMUS{}

type scanProgressEntryMUS struct{}

func (scanProgressEntryMUS) Marshal(e ScanProgressEntry, bs []byte) (n int) {
	n = IDMUS.Marshal(e.SessionId, bs)
	n += ord.String.Marshal(e.ItemRef, bs[n:])
	n += ord.String.Marshal(e.Path, bs[n:])
	n += varint.Int.Marshal(int(e.ItemType), bs[n:])
	n += varint.Int.Marshal(int(e.Status), bs[n:])
	n += varint.Int64.Marshal(e.Size, bs[n:])
	n += ord.String.Marshal(e.Error, bs[n:])
	n += timeMUS.Marshal(e.ProcessedAt, bs[n:])
	return n
}

func (scanProgressEntryMUS) Unmarshal(bs []byte) (e ScanProgressEntry, n int, err error) {
	var (
		n1 int
		v  int
	)
	e.SessionId, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	if e.ItemRef, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Path, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if v, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	e.ItemType = ItemType(v)
	n += n1
	if v, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	e.Status = ItemStatus(v)
	n += n1
	if e.Size, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Error, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.ProcessedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	return e, n, nil
}

func (scanProgressEntryMUS) Size(e ScanProgressEntry) (size int) {
	size = IDMUS.Size(e.SessionId)
	size += ord.String.Size(e.ItemRef)
	size += ord.String.Size(e.Path)
	size += varint.Int.Size(int(e.ItemType))
	size += varint.Int.Size(int(e.Status))
	size += varint.Int64.Size(e.Size)
	size += ord.String.Size(e.Error)
	size += timeMUS.Size(e.ProcessedAt)
	return size
}
