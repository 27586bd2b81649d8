package recognize

import (
	"net/http"

	"github.com/tendant/simple-face-pipeline/pkg/envelope"
)

// completionBody is the fixed body reported after every batch, matching what
// existing batch hosts expect.
const completionBody = `{"message": "Face recognition completed."}`

// BatchResult is what one batch invocation reports back to the host. The
// status code and body always signal success; per-record outcomes carry the
// real story so the host can choose its retry policy.
type BatchResult struct {
	StatusCode int
	Body       string
	Records    []RecordResult
}

// RecordResult describes the outcome of one record in a batch.
type RecordResult struct {
	MessageID string
	RequestID string
	Status    envelope.Status
	Label     string
	Err       error

	// Retryable marks failures that may clear on redelivery. Malformed
	// records are never retryable; redelivering them cannot help.
	Retryable bool
}

// Succeeded reports whether the record produced a result emission.
func (r RecordResult) Succeeded() bool {
	return r.Err == nil
}

func newBatchResult(capacity int) *BatchResult {
	return &BatchResult{
		StatusCode: http.StatusOK,
		Body:       completionBody,
		Records:    make([]RecordResult, 0, capacity),
	}
}
