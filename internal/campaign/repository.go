package campaign

import "context"

type Repository interface {
	Insert(ctx context.Context, c Campaign) error
	ByID(ctx context.Context, tenantID, id string) (Campaign, error)
	List(ctx context.Context, tenantID string, limit int) ([]Campaign, error)
	SetStatus(ctx context.Context, tenantID, id string, status Status) error

	// RecordBatchResult stores per-recipient outcomes and adds the batch
	// counts to the campaign in one atomic step. A batch id that was already
	// recorded is a no-op and reports applied=false.
	RecordBatchResult(ctx context.Context, r BatchResult) (c Campaign, applied bool, err error)
}
