package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/the-line/loyaltysync"
	"github.com/the-line/loyaltysync/id"
	"github.com/the-line/loyaltysync/job"
)

// ── Job model ─────────────────────────────────────────────────────

type jobModel struct {
	bun.BaseModel `bun:"table:loyaltysync_jobs"`

	ID         string     `bun:"id,pk"`
	RelationID string     `bun:"relation_id,notnull,default:''"`
	SourceID   string     `bun:"source_id,notnull,default:''"`
	StoreID    string     `bun:"store_id,notnull"`
	Completed  bool       `bun:"completed,notnull,default:false"`
	Committed  bool       `bun:"committed,notnull,default:false"`
	LeasedBy   string     `bun:"leased_by,notnull,default:''"`
	LeaseUntil *time.Time `bun:"lease_until"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toJobModel(j *job.Job) *jobModel {
	m := &jobModel{
		ID:         j.ID.String(),
		RelationID: j.RelationID,
		SourceID:   j.SourceID,
		StoreID:    j.StoreID,
		Completed:  j.Completed,
		Committed:  j.Committed,
		LeaseUntil: j.LeaseUntil,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
	if !j.LeasedBy.IsNil() {
		m.LeasedBy = j.LeasedBy.String()
	}
	return m
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("loyaltysync/bun: parse job id %q: %w", m.ID, err)
	}

	j := &job.Job{
		Entity: loyaltysync.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         parsedID,
		RelationID: m.RelationID,
		SourceID:   m.SourceID,
		StoreID:    m.StoreID,
		Completed:  m.Completed,
		Committed:  m.Committed,
		LeaseUntil: m.LeaseUntil,
	}

	if m.LeasedBy != "" {
		parsedWorker, wErr := id.ParseWorkerID(m.LeasedBy)
		if wErr == nil {
			j.LeasedBy = parsedWorker
		}
	}

	return j, nil
}

// ── Request model ─────────────────────────────────────────────────

type requestModel struct {
	bun.BaseModel `bun:"table:loyaltysync_requests"`

	ID               string     `bun:"id,pk"`
	JobID            string     `bun:"job_id,notnull"`
	TypeCode         string     `bun:"type_code,notnull"`
	Payload          []byte     `bun:"payload,notnull,type:jsonb"`
	Result           []byte     `bun:"result,type:jsonb"`
	IsSynced         bool       `bun:"is_synced,notnull,default:false"`
	Attempt          int        `bun:"attempt,notnull,default:0"`
	LatestFailReason string     `bun:"latest_fail_reason,notnull,default:''"`
	NextAttemptAt    *time.Time `bun:"next_attempt_at"`
	Parked           bool       `bun:"parked,notnull,default:false"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toRequestModel(r *job.Request) (*requestModel, error) {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("loyaltysync/bun: marshal payload for request %s: %w", r.ID, err)
	}
	return &requestModel{
		ID:               r.ID.String(),
		JobID:            r.JobID.String(),
		TypeCode:         r.TypeCode,
		Payload:          payload,
		Result:           r.Result,
		IsSynced:         r.IsSynced,
		Attempt:          r.Attempt,
		LatestFailReason: r.LatestFailReason,
		NextAttemptAt:    r.NextAttemptAt,
		Parked:           r.Parked,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}, nil
}

func fromRequestModel(m *requestModel) (*job.Request, error) {
	parsedID, err := id.ParseRequestID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("loyaltysync/bun: parse request id %q: %w", m.ID, err)
	}
	parsedJobID, err := id.ParseJobID(m.JobID)
	if err != nil {
		return nil, fmt.Errorf("loyaltysync/bun: parse job id %q: %w", m.JobID, err)
	}

	var payload job.Payload
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			return nil, fmt.Errorf("loyaltysync/bun: unmarshal payload for request %s: %w", m.ID, err)
		}
	}

	return &job.Request{
		Entity: loyaltysync.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               parsedID,
		JobID:            parsedJobID,
		TypeCode:         m.TypeCode,
		Payload:          payload,
		Result:           m.Result,
		IsSynced:         m.IsSynced,
		Attempt:          m.Attempt,
		LatestFailReason: m.LatestFailReason,
		NextAttemptAt:    m.NextAttemptAt,
		Parked:           m.Parked,
	}, nil
}

// ── Alert marker model ────────────────────────────────────────────

type alertMarkerModel struct {
	bun.BaseModel `bun:"table:loyaltysync_alert_markers"`

	Class      string    `bun:"class,pk"`
	LastSentAt time.Time `bun:"last_sent_at,notnull"`
}

// ── Trigger state model ───────────────────────────────────────────

type triggerStateModel struct {
	bun.BaseModel `bun:"table:loyaltysync_trigger_state"`

	Name      string    `bun:"name,pk"`
	LastRunAt time.Time `bun:"last_run_at,notnull"`
}
