package api

import (
	"context"
	"errors"

	"riptide/internal/queue"
)

// QueueActionService captures queue operations needed by per-item retry/cancel workflows.
type QueueActionService interface {
	Describe(ctx context.Context, id string) (*QueueItem, error)
	Retry(ctx context.Context, id string) (bool, error)
	Cancel(ctx context.Context, id string) (bool, error)
}

type RetryItemOutcome string

const (
	RetryItemUpdated      RetryItemOutcome = "retried"
	RetryItemNotFound     RetryItemOutcome = "not_found"
	RetryItemNotRetryable RetryItemOutcome = "not_retryable"
)

type RetryItemResult struct {
	ID          string           `json:"local_id"`
	Outcome     RetryItemOutcome `json:"outcome"`
	PriorStatus string           `json:"prior_status,omitempty"`
}

type RetryItemsResult struct {
	UpdatedCount int               `json:"updated_count"`
	Items        []RetryItemResult `json:"items"`
}

type CancelItemOutcome string

const (
	CancelItemUpdated         CancelItemOutcome = "cancelled"
	CancelItemNotFound        CancelItemOutcome = "not_found"
	CancelItemAlreadyFinished CancelItemOutcome = "already_finished"
)

type CancelItemResult struct {
	ID          string            `json:"local_id"`
	Outcome     CancelItemOutcome `json:"outcome"`
	PriorStatus string            `json:"prior_status,omitempty"`
}

type CancelItemsResult struct {
	UpdatedCount int                `json:"updated_count"`
	Items        []CancelItemResult `json:"items"`
}

// RetryItemsByID retries each id, reporting per-id outcomes. Only failed,
// cancelled, unavailable and deleted items are retried.
func RetryItemsByID(ctx context.Context, service QueueActionService, ids []string) (RetryItemsResult, error) {
	result := RetryItemsResult{Items: make([]RetryItemResult, 0, len(ids))}
	for _, id := range ids {
		item, err := service.Describe(ctx, id)
		if err != nil {
			return RetryItemsResult{}, err
		}
		if item == nil {
			result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemNotFound})
			continue
		}
		updated, err := service.Retry(ctx, id)
		if errors.Is(err, queue.ErrItemNotFound) {
			result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemNotFound})
			continue
		}
		if err != nil {
			return RetryItemsResult{}, err
		}
		if updated {
			result.UpdatedCount++
			result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemUpdated, PriorStatus: item.Status})
			continue
		}
		result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemNotRetryable, PriorStatus: item.Status})
	}
	return result, nil
}

// CancelItemsByID cancels each id unless it already reached a terminal status.
func CancelItemsByID(ctx context.Context, service QueueActionService, ids []string) (CancelItemsResult, error) {
	result := CancelItemsResult{Items: make([]CancelItemResult, 0, len(ids))}
	for _, id := range ids {
		item, err := service.Describe(ctx, id)
		if err != nil {
			return CancelItemsResult{}, err
		}
		if item == nil {
			result.Items = append(result.Items, CancelItemResult{ID: id, Outcome: CancelItemNotFound})
			continue
		}
		if item.Terminal {
			result.Items = append(result.Items, CancelItemResult{ID: id, Outcome: CancelItemAlreadyFinished, PriorStatus: item.Status})
			continue
		}
		updated, err := service.Cancel(ctx, id)
		if errors.Is(err, queue.ErrItemNotFound) {
			result.Items = append(result.Items, CancelItemResult{ID: id, Outcome: CancelItemNotFound})
			continue
		}
		if err != nil {
			return CancelItemsResult{}, err
		}
		if updated {
			result.UpdatedCount++
			result.Items = append(result.Items, CancelItemResult{ID: id, Outcome: CancelItemUpdated, PriorStatus: item.Status})
			continue
		}
		result.Items = append(result.Items, CancelItemResult{ID: id, Outcome: CancelItemAlreadyFinished, PriorStatus: item.Status})
	}
	return result, nil
}
