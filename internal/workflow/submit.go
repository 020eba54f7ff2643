package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"riptide/internal/logging"
	"riptide/internal/services"
)

// Submit accepts a URL for resolution. It fails with ErrValidation when no
// registered resolver understands the URL. Resolution happens on the parsing
// worker, so Submit never blocks on the network.
func (m *Manager) Submit(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return services.Wrap(services.ErrValidation, "submit", "match resolver", "url is required", nil)
	}
	service, _, ok := m.registry.ResolverFor(url)
	if !ok {
		return services.Wrap(services.ErrValidation, "submit", "match resolver", fmt.Sprintf("unsupported url %q", url), nil)
	}

	m.parseMu.Lock()
	m.parseList = append(m.parseList, url)
	m.parseMu.Unlock()
	select {
	case m.parseSignal <- struct{}{}:
	default:
	}

	logging.WithContext(ctx, m.logger).Info("url submitted",
		logging.String("url", url),
		logging.String(logging.FieldService, service),
		logging.String(logging.FieldEventType, "url_submitted"),
	)
	return nil
}

func (m *Manager) nextSubmitted() (string, bool) {
	m.parseMu.Lock()
	defer m.parseMu.Unlock()
	if len(m.parseList) == 0 {
		return "", false
	}
	url := m.parseList[0]
	m.parseList = m.parseList[1:]
	return url, true
}

func (m *Manager) parseBacklog() int {
	m.parseMu.Lock()
	defer m.parseMu.Unlock()
	return len(m.parseList)
}

func (m *Manager) runParseWorker(ctx context.Context, logger *slog.Logger) {
	defer m.wg.Done()
	for {
		m.staging.Add(1)
		url, ok := m.nextSubmitted()
		if !ok {
			m.staging.Add(-1)
			select {
			case <-ctx.Done():
				return
			case <-m.parseSignal:
			}
			continue
		}
		m.resolve(ctx, logger, url)
		m.staging.Add(-1)
		if ctx.Err() != nil {
			return
		}
	}
}

func (m *Manager) resolve(ctx context.Context, logger *slog.Logger, url string) {
	service, resolver, ok := m.registry.ResolverFor(url)
	if !ok {
		logger.Warn("no resolver for submitted url",
			logging.String("url", url),
			logging.String(logging.FieldEventType, "resolve_unsupported"),
			logging.String(logging.FieldErrorHint, "register a collaborator for this service"),
		)
		return
	}
	ctx = services.WithService(services.WithStage(ctx, "resolve"), service)
	token, err := m.accounts.Token(ctx, service)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, logger), "account session unavailable for resolve", "resolve_failed",
			logging.String("url", url),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
		return
	}
	entries, err := resolver.Resolve(ctx, token, url)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, logger), "url resolution failed", "resolve_failed",
			logging.String("url", url),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "nothing was queued for this url"),
		)
		return
	}
	for _, entry := range entries {
		m.pending.Put(entry)
	}
	logging.WithContext(ctx, logger).Info("url resolved",
		logging.String("url", url),
		logging.Int("entries", len(entries)),
		logging.String(logging.FieldEventType, "url_resolved"),
	)
}
