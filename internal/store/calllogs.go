package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Call log statuses. Spam takes precedence over transferred, which takes
// precedence over answered.
const (
	StatusAnswered    = "answered"
	StatusTransferred = "transferred"
	StatusSpam        = "spam"
)

// CallLog is the immutable record persisted when a call reaches a terminal
// state. Only the recording URL may be attached afterwards, from the
// provider's recording.saved event.
type CallLog struct {
	ID                 int64      `json:"id"`
	ContactID          *int64     `json:"contact_id,omitempty"`
	CallID             string     `json:"call_id"`
	PhoneNumber        string     `json:"phone_number"`
	Direction          string     `json:"direction"`
	Status             string     `json:"status"`
	Duration           int        `json:"duration"`
	Transcript         string     `json:"transcript,omitempty"`
	Summary            string     `json:"summary,omitempty"`
	LeadQualified      bool       `json:"lead_qualified"`
	CallerName         string     `json:"caller_name,omitempty"`
	CallerCompany      string     `json:"caller_company,omitempty"`
	ReasonForCall      string     `json:"reason_for_call,omitempty"`
	TransferredToHuman bool       `json:"transferred_to_human"`
	RecordingURL       string     `json:"recording_url,omitempty"`
	StartedAt          time.Time  `json:"started_at"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// CallLogFilter narrows CallLogs results.
type CallLogFilter struct {
	Status string
	Phone  string
	Limit  int
}

// CreateCallLog inserts a call record and returns its id.
func (s *Store) CreateCallLog(ctx context.Context, l CallLog) (int64, error) {
	var contactID sql.NullInt64
	if l.ContactID != nil {
		contactID = sql.NullInt64{Int64: *l.ContactID, Valid: true}
	}

	var endedAt sql.NullInt64
	if l.EndedAt != nil {
		endedAt = sql.NullInt64{Int64: l.EndedAt.UTC().Unix(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO call_logs (
			contact_id, call_id, phone_number, direction, status, duration,
			transcript, summary, lead_qualified, caller_name, caller_company,
			reason_for_call, transferred_to_human, recording_url, started_at, ended_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		contactID, l.CallID, l.PhoneNumber, l.Direction, l.Status, l.Duration,
		toNullString(l.Transcript), toNullString(l.Summary), boolToInt(l.LeadQualified),
		toNullString(l.CallerName), toNullString(l.CallerCompany), toNullString(l.ReasonForCall),
		boolToInt(l.TransferredToHuman), toNullString(l.RecordingURL),
		l.StartedAt.UTC().Unix(), endedAt, time.Now().UTC().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert call log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("call log insert id: %w", err)
	}
	return id, nil
}

// CallLogByID fetches one call record.
func (s *Store) CallLogByID(ctx context.Context, id int64) (*CallLog, error) {
	rows, err := s.db.QueryContext(ctx, selectCallLog+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("query call log: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query call log: %w", err)
		}
		return nil, ErrNotFound
	}
	return scanCallLog(rows)
}

// CallLogs lists call records, newest first.
func (s *Store) CallLogs(ctx context.Context, filter CallLogFilter) ([]CallLog, error) {
	query := selectCallLog
	var (
		conditions []string
		params     []any
	)

	if filter.Status != "" && filter.Status != "all" {
		conditions = append(conditions, "status = ?")
		params = append(params, filter.Status)
	}
	if filter.Phone != "" {
		conditions = append(conditions, "phone_number LIKE ?")
		params = append(params, "%"+filter.Phone+"%")
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		params = append(params, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query call logs: %w", err)
	}
	defer rows.Close()

	logs := make([]CallLog, 0, 32)
	for rows.Next() {
		l, err := scanCallLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call logs: %w", err)
	}
	return logs, nil
}

// AttachRecording stores the recording URL on the most recent record for the
// provider call id. Recordings arrive after hangup, once the log row exists.
func (s *Store) AttachRecording(ctx context.Context, callID, url string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE call_logs SET recording_url = ?
		WHERE id = (SELECT id FROM call_logs WHERE call_id = ? ORDER BY started_at DESC LIMIT 1)
	`, url, callID)
	if err != nil {
		return fmt.Errorf("attach recording: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach recording: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const selectCallLog = `
	SELECT id, contact_id, call_id, phone_number, direction, status, duration,
		transcript, summary, lead_qualified, caller_name, caller_company,
		reason_for_call, transferred_to_human, recording_url, started_at, ended_at, created_at
	FROM call_logs`

func scanCallLog(rows *sql.Rows) (*CallLog, error) {
	var (
		l                                                     CallLog
		contactID, endedAt                                    sql.NullInt64
		transcript, summary, name, company, reason, recording sql.NullString
		leadQualified, transferred                            int
		startedAt, createdAt                                  int64
	)

	err := rows.Scan(
		&l.ID, &contactID, &l.CallID, &l.PhoneNumber, &l.Direction, &l.Status, &l.Duration,
		&transcript, &summary, &leadQualified, &name, &company,
		&reason, &transferred, &recording, &startedAt, &endedAt, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan call log: %w", err)
	}

	if contactID.Valid {
		l.ContactID = &contactID.Int64
	}
	l.Transcript = fromNullString(transcript)
	l.Summary = fromNullString(summary)
	l.LeadQualified = leadQualified != 0
	l.CallerName = fromNullString(name)
	l.CallerCompany = fromNullString(company)
	l.ReasonForCall = fromNullString(reason)
	l.TransferredToHuman = transferred != 0
	l.RecordingURL = fromNullString(recording)
	l.StartedAt = time.Unix(startedAt, 0).UTC()
	if endedAt.Valid {
		t := time.Unix(endedAt.Int64, 0).UTC()
		l.EndedAt = &t
	}
	l.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &l, nil
}
