// Package accounts holds the per-service login pool handed to collaborators.
//
// Each account owns a mutex that serializes session initialization, so two
// workers never re-login the same account concurrently. WithFallback walks the
// accounts of a service, moving to the next untried account when the callback
// reports a transient failure.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"riptide/internal/config"
	"riptide/internal/services"
)

// Token is the credential a collaborator receives for one call.
type Token struct {
	Service   string
	AccountID string
	Name      string
	Value     string
}

// Anonymous reports whether the token carries no account.
func (t Token) Anonymous() bool {
	return t.AccountID == ""
}

// SessionFunc (re)initializes a session for an account and returns the token
// value to use. It runs under the account's mutex.
type SessionFunc func(ctx context.Context, service, accountID, stored string) (string, error)

type account struct {
	service string
	id      string
	name    string
	stored  string

	mu    sync.Mutex
	value string
	ready bool
}

// Pool maps services to their configured accounts.
type Pool struct {
	mu        sync.Mutex
	byService map[string][]*account
	cursor    map[string]int
	rotate    bool
	sessions  map[string]SessionFunc
}

// NewPool builds a pool from the active accounts in cfg.
func NewPool(cfg *config.Config) *Pool {
	p := &Pool{
		byService: make(map[string][]*account),
		cursor:    make(map[string]int),
		sessions:  make(map[string]SessionFunc),
	}
	if cfg == nil {
		return p
	}
	p.rotate = cfg.AccountOptions.Rotate
	for _, acct := range cfg.Accounts {
		if acct.Active {
			p.Add(acct.Service, acct.UUID, acct.Name, acct.Token)
		}
	}
	return p
}

// Add registers an account for service.
func (p *Pool) Add(service, id, name, token string) {
	service = normalizeService(service)
	if id == "" {
		id = name
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byService[service] = append(p.byService[service], &account{
		service: service,
		id:      id,
		name:    name,
		stored:  token,
	})
}

// SetSessionFunc installs the session initializer for service. Without one the
// stored token is used as-is.
func (p *Pool) SetSessionFunc(service string, fn SessionFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[normalizeService(service)] = fn
}

// Count returns the number of accounts configured for service.
func (p *Pool) Count(service string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byService[normalizeService(service)])
}

// Token returns a ready token for the current account of service. Services
// without accounts receive an anonymous token.
func (p *Pool) Token(ctx context.Context, service string) (Token, error) {
	ordered, session := p.ordered(service)
	if len(ordered) == 0 {
		return Token{Service: normalizeService(service)}, nil
	}
	return ordered[0].token(ctx, session)
}

// WithFallback calls fn with a token for each account of service in turn,
// starting at the current account. It stops at the first success or at the
// first error that is not transient. Every account is tried at most once.
func (p *Pool) WithFallback(ctx context.Context, service string, fn func(context.Context, Token) error) error {
	ordered, session := p.ordered(service)
	if len(ordered) == 0 {
		return fn(ctx, Token{Service: normalizeService(service)})
	}

	tried := make(map[string]struct{}, len(ordered))
	var lastErr error
	for _, acct := range ordered {
		if _, seen := tried[acct.id]; seen {
			continue
		}
		tried[acct.id] = struct{}{}
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCancelled, "accounts", "fallback", "context done", err)
		}

		tok, err := acct.token(ctx, session)
		if err == nil {
			err = fn(ctx, tok)
		}
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, services.ErrTransient) {
			return err
		}
		acct.invalidate()
	}
	return lastErr
}

func (p *Pool) ordered(service string) ([]*account, SessionFunc) {
	service = normalizeService(service)
	p.mu.Lock()
	defer p.mu.Unlock()
	accts := p.byService[service]
	if len(accts) == 0 {
		return nil, p.sessions[service]
	}
	start := 0
	if p.rotate {
		start = p.cursor[service] % len(accts)
		p.cursor[service] = start + 1
	}
	out := make([]*account, 0, len(accts))
	out = append(out, accts[start:]...)
	out = append(out, accts[:start]...)
	return out, p.sessions[service]
}

func (a *account) token(ctx context.Context, session SessionFunc) (Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.ready {
		value := a.stored
		if session != nil {
			v, err := session(ctx, a.service, a.id, a.stored)
			if err != nil {
				return Token{}, fmt.Errorf("init session for %s account %q: %w", a.service, a.name, err)
			}
			value = v
		}
		a.value = value
		a.ready = true
	}
	return Token{Service: a.service, AccountID: a.id, Name: a.name, Value: a.value}, nil
}

func (a *account) invalidate() {
	a.mu.Lock()
	a.ready = false
	a.mu.Unlock()
}

func normalizeService(service string) string {
	return strings.ToLower(strings.TrimSpace(service))
}
