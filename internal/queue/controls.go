package queue

// Cancel marks a waiting or in-flight item as Cancelled. A claimed item keeps
// its claim; the owning worker observes the status at its next checkpoint.
// It reports whether the status changed.
func (s *Store) Cancel(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.index[id]
	if !ok {
		return false, ErrItemNotFound
	}
	item := elem.Value.(*Item)
	if item.Status.IsTerminal() {
		return false, nil
	}
	item.Status = StatusCancelled
	item.UpdatedAt = s.now()
	return true, nil
}

// Retry resets a failed, cancelled, unavailable or deleted item to Waiting.
// An item still held by a worker is left alone until the worker releases it.
func (s *Store) Retry(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.index[id]
	if !ok {
		return false, ErrItemNotFound
	}
	item := elem.Value.(*Item)
	if !item.Available {
		return false, nil
	}
	switch item.Status {
	case StatusFailed, StatusCancelled, StatusUnavailable, StatusDeleted:
	default:
		return false, nil
	}
	s.resetLocked(item)
	return true, nil
}

// CancelAll cancels every item that is still Waiting.
func (s *Store) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*Item)
		if item.Status != StatusWaiting {
			continue
		}
		item.Status = StatusCancelled
		item.UpdatedAt = s.now()
		count++
	}
	return count
}

// RetryAll resets every Failed item to Waiting.
func (s *Store) RetryAll() int {
	return s.ResetFailed()
}

// ResetFailed flips every Failed item back to Waiting. The claim flag is left
// untouched.
func (s *Store) ResetFailed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*Item)
		if item.Status != StatusFailed {
			continue
		}
		s.resetLocked(item)
		count++
	}
	return count
}

func (s *Store) resetLocked(item *Item) {
	item.Status = StatusWaiting
	item.Progress = 0
	item.ErrorMessage = ""
	item.UpdatedAt = s.now()
}

// ClearCompleted removes unclaimed items that finished, were cancelled, or
// were deleted. It returns the number removed.
func (s *Store) ClearCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*Item)
		if !item.Available {
			continue
		}
		if _, ok := completedStatuses[item.Status]; ok {
			ids = append(ids, item.LocalID)
		}
	}
	for _, id := range ids {
		s.removeLocked(id)
	}
	return len(ids)
}

// MarkDeleted flags a finished item as Deleted and returns its file path so
// the caller can remove the file outside the lock.
func (s *Store) MarkDeleted(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.index[id]
	if !ok {
		return "", ErrItemNotFound
	}
	item := elem.Value.(*Item)
	if item.Status != StatusDownloaded && item.Status != StatusAlreadyExists {
		return "", nil
	}
	path := item.FilePath
	item.Status = StatusDeleted
	item.UpdatedAt = s.now()
	return path, nil
}
