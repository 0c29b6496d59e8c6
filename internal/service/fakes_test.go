package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/repository"
)

const testDomain = "mangle.local"

type fakeHasher struct{}

func (fakeHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

func (fakeHasher) Compare(hashed, plain string) error {
	if hashed != "hashed:"+plain {
		return errors.New("mismatch")
	}
	return nil
}

type fakeIdentity struct {
	username string
	err      error
}

func (f fakeIdentity) CurrentUsername(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.username == "" {
		return "", errors.New("anonymous")
	}
	return f.username, nil
}

// brokenUserRepo fails every call with err.
type brokenUserRepo struct {
	err error
}

func (r brokenUserRepo) Find(context.Context, string, string) (*domain.User, error) { return nil, r.err }
func (r brokenUserRepo) Insert(context.Context, *domain.User) error { return r.err }
func (r brokenUserRepo) Update(context.Context, *domain.User) error { return r.err }
func (r brokenUserRepo) List(context.Context) ([]domain.User, error) { return nil, r.err }
func (r brokenUserRepo) Delete(context.Context, string, string) error { return r.err }

// brokenFlagRepo fails every call with err.
type brokenFlagRepo struct {
	err error
}

func (r brokenFlagRepo) Get(context.Context, string) (bool, bool, error) { return false, false, r.err }
func (r brokenFlagRepo) Set(context.Context, string, bool) error { return r.err }

// countingUpdater counts UpdateUser calls and forwards to next when set.
type countingUpdater struct {
	mu     sync.Mutex
	calls  int
	next   CredentialUpdater
	err    error
	getErr error
	// last is the record most recently handed to UpdateUser.
	last domain.User
}

func (c *countingUpdater) GetUser(ctx context.Context, username string) (*domain.User, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	if c.next != nil {
		return c.next.GetUser(ctx, username)
	}
	name, userDomain := domain.SplitName(username)
	return &domain.User{Name: name, Domain: userDomain, Roles: []string{"admin"}}, nil
}

func (c *countingUpdater) UpdateUser(ctx context.Context, candidate domain.User) (*domain.User, error) {
	c.mu.Lock()
	c.calls++
	c.last = candidate
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if c.next != nil {
		return c.next.UpdateUser(ctx, candidate)
	}
	out := candidate
	return &out, nil
}

// countingGate counts UpdateResetStatus calls and forwards to next when set.
type countingGate struct {
	mu    sync.Mutex
	calls int
	next  ResetStatusUpdater
	err   error
}

func (c *countingGate) UpdateResetStatus(ctx context.Context) (bool, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.next != nil {
		return c.next.UpdateResetStatus(ctx)
	}
	return true, nil
}

type recordingDispatcher struct {
	events.Dispatcher
	mu     sync.Mutex
	events []events.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{Dispatcher: events.NewInMemoryDispatcher()}
}

func (d *recordingDispatcher) Publish(ctx context.Context, e events.Event) error {
	d.mu.Lock()
	d.events = append(d.events, e)
	d.mu.Unlock()
	return d.Dispatcher.Publish(ctx, e)
}

func (d *recordingDispatcher) types() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, string(e.Type))
	}
	return out
}

func newTestUserService(repo repository.UserRepository, identity IdentityResolver, dispatcher events.Dispatcher) *UserService {
	return NewUserService(UserDependencies{
		UserRepo:   repo,
		Domains:    StaticDomain(testDomain),
		Identity:   identity,
		Hasher:     fakeHasher{},
		Dispatcher: dispatcher,
		AdminName:  "admin",
	})
}

func joinTypes(types []string) string { return strings.Join(types, ",") }
