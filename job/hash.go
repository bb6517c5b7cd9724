package job

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// hashDocument is the canonical serialization input for the content hash.
// Field order is fixed; encoding/json sorts map keys, so nested payload
// maps serialize deterministically as well.
type hashDocument struct {
	RequestID string  `json:"request_id"`
	JobID     string  `json:"job_id"`
	TypeCode  string  `json:"type_code"`
	Payload   Payload `json:"payload"`
	CreatedAt string  `json:"created_at"`
}

// ContentHash returns the deterministic idempotency key for the request:
// a SHA-256 over the canonical JSON of {request_id, job_id, type_code,
// payload, created_at}. Identical inputs always produce identical hashes;
// changing any one field changes the hash. Handlers attach it as a custom
// attribute on remote-side records so a later lookup can detect "already
// applied".
func (r *Request) ContentHash() string {
	doc := hashDocument{
		RequestID: r.ID.String(),
		JobID:     r.JobID.String(),
		TypeCode:  r.TypeCode,
		Payload:   r.Payload,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	data, err := json.Marshal(doc)
	if err != nil {
		// Payloads hold JSON-native values only; see Payload.
		panic(fmt.Sprintf("job: content hash for request %s: %v", r.ID, err))
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
