package api

import (
	"context"
	"errors"

	"riptide/internal/queue"
)

// QueueRemoveService captures queue operations needed by per-item remove and
// delete workflows.
type QueueRemoveService interface {
	Remove(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) (string, error)
}

type RemoveItemOutcome string

const (
	RemoveItemRemoved     RemoveItemOutcome = "removed"
	RemoveItemDeleted     RemoveItemOutcome = "deleted"
	RemoveItemNotFound    RemoveItemOutcome = "not_found"
	RemoveItemNotFinished RemoveItemOutcome = "not_finished"
)

type RemoveItemResult struct {
	ID       string            `json:"local_id"`
	Outcome  RemoveItemOutcome `json:"outcome"`
	FilePath string            `json:"file_path,omitempty"`
}

type RemoveItemsResult struct {
	RemovedCount int                `json:"removed_count"`
	Items        []RemoveItemResult `json:"items"`
}

// RemoveItemsByID removes queue items one-by-one so each ID can report removed/not_found.
func RemoveItemsByID(ctx context.Context, service QueueRemoveService, ids []string) (RemoveItemsResult, error) {
	result := RemoveItemsResult{Items: make([]RemoveItemResult, 0, len(ids))}
	for _, id := range ids {
		removed, err := service.Remove(ctx, id)
		if err != nil {
			return RemoveItemsResult{}, err
		}
		if removed {
			result.RemovedCount++
			result.Items = append(result.Items, RemoveItemResult{ID: id, Outcome: RemoveItemRemoved})
			continue
		}
		result.Items = append(result.Items, RemoveItemResult{ID: id, Outcome: RemoveItemNotFound})
	}
	return result, nil
}

// DeleteItemsByID removes the downloaded file of each finished item and marks
// it Deleted.
func DeleteItemsByID(ctx context.Context, service QueueRemoveService, ids []string) (RemoveItemsResult, error) {
	result := RemoveItemsResult{Items: make([]RemoveItemResult, 0, len(ids))}
	for _, id := range ids {
		path, err := service.Delete(ctx, id)
		switch {
		case errors.Is(err, queue.ErrItemNotFound):
			result.Items = append(result.Items, RemoveItemResult{ID: id, Outcome: RemoveItemNotFound})
		case errors.Is(err, ErrNotDeletable):
			result.Items = append(result.Items, RemoveItemResult{ID: id, Outcome: RemoveItemNotFinished})
		case err != nil:
			return RemoveItemsResult{}, err
		default:
			result.RemovedCount++
			result.Items = append(result.Items, RemoveItemResult{ID: id, Outcome: RemoveItemDeleted, FilePath: path})
		}
	}
	return result, nil
}
