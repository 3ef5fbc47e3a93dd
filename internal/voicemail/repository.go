package voicemail

import "context"

type Repository interface {
	// Insert is idempotent on RecordingSid; created is false for a replay.
	Insert(ctx context.Context, v Voicemail) (created bool, err error)
	ByID(ctx context.Context, tenantID, id string) (Voicemail, error)
	ByRecordingSid(ctx context.Context, tenantID, recordingSid string) (Voicemail, error)
	List(ctx context.Context, tenantID, extensionCode string, limit int) ([]Voicemail, error)
	SetTranscript(ctx context.Context, tenantID, recordingSid, transcript string) error
	MarkListened(ctx context.Context, tenantID, id string) error
}
