package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/docpipe/core"
)

// Key prefixes for different data types
const (
	documentPrefix    = "docrec"
	documentJobPrefix = "docjob"
	jobPrefix         = "jobrec"
	jobDatePrefix     = "jobdat"
	jobIDSeq          = "jobrecseq"
	logPrefix         = "logrec"
	logJobPrefix      = "logjob"
	logDocPrefix      = "logdoc"
	logIDSeq          = "logrecseq"
	sessionPrefix     = "scnrec"
	sessionDatePrefix = "scndat"
	sessionActiveKey  = "scnact"
	sessionIDSeq      = "scnrecseq"
	progressPrefix    = "scnprg"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, id))
}

// makeDocumentJobKey generates a composite key for the job index.
// Format: prefix:jobID:documentID
func makeDocumentJobKey(jobId, documentId core.ID) []byte {
	return appendUint64(appendUint64([]byte(documentJobPrefix+":"), uint64(jobId)), uint64(documentId))
}

// makePartialDocumentJobKey generates a partial key for job document queries.
func makePartialDocumentJobKey(jobId core.ID) []byte {
	return appendUint64([]byte(documentJobPrefix+":"), uint64(jobId))
}

// makeJobKey generates a key for a job by ID.
func makeJobKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", jobPrefix, id))
}

// makeJobDateKey generates a composite key for the job start-time index.
// Format: prefix:timestamp:id
func makeJobDateKey(startedAt time.Time, id core.ID) []byte {
	return appendUint64(appendUint64([]byte(jobDatePrefix+":"), uint64(startedAt.UnixMicro())), uint64(id))
}

// makeLogKey generates a key for a log entry by ID.
func makeLogKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", logPrefix, id))
}

// makeLogJobKey generates a composite key for the per-job log index.
// Log IDs are sequence-generated, so iterating the index yields append order.
func makeLogJobKey(jobId, logId core.ID) []byte {
	return appendUint64(appendUint64([]byte(logJobPrefix+":"), uint64(jobId)), uint64(logId))
}

// makePartialLogJobKey generates a partial key for per-job log queries.
func makePartialLogJobKey(jobId core.ID) []byte {
	return appendUint64([]byte(logJobPrefix+":"), uint64(jobId))
}

// makeLogDocKey generates a composite key for the per-document log index.
func makeLogDocKey(documentId, logId core.ID) []byte {
	return appendUint64(appendUint64([]byte(logDocPrefix+":"), uint64(documentId)), uint64(logId))
}

// makePartialLogDocKey generates a partial key for per-document log queries.
func makePartialLogDocKey(documentId core.ID) []byte {
	return appendUint64([]byte(logDocPrefix+":"), uint64(documentId))
}

// makeSessionKey generates a key for a scan session by ID.
func makeSessionKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", sessionPrefix, id))
}

// makeSessionDateKey generates a composite key for the session start-time index.
func makeSessionDateKey(startedAt time.Time, id core.ID) []byte {
	return appendUint64(appendUint64([]byte(sessionDatePrefix+":"), uint64(startedAt.UnixMicro())), uint64(id))
}

// makeActiveSessionKey generates the one-active-session-per-folder slot key.
func makeActiveSessionKey(folderRef string) []byte {
	return []byte(sessionActiveKey + ":" + folderRef)
}

// makeProgressKey generates a composite key for a per-item progress entry.
// Format: prefix:sessionID:itemRef
func makeProgressKey(sessionId core.ID, itemRef string) []byte {
	return append(appendUint64([]byte(progressPrefix+":"), uint64(sessionId)), []byte(itemRef)...)
}

// makePartialProgressKey generates a partial key for session progress queries.
func makePartialProgressKey(sessionId core.ID) []byte {
	return appendUint64([]byte(progressPrefix+":"), uint64(sessionId))
}

// appendUint64 appends v in BigEndian order so lexicographic sort matches
// numeric order.
func appendUint64(buf []byte, v uint64) []byte {
	out := make([]byte, len(buf)+8)
	offset := copy(out, buf)
	binary.BigEndian.PutUint64(out[offset:], v)
	return out
}
