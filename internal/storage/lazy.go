package storage

import (
	"context"
	"sync"
)

// Lazy defers Gateway construction until the first operation that needs it
// and shares the single instance for the rest of the process lifetime. A
// construction failure is returned to the caller but not cached: credentials
// can change between calls, so the next operation attempts construction
// again.
type Lazy struct {
	mu      sync.Mutex
	factory func(ctx context.Context) (*Gateway, error)
	gateway *Gateway
}

// NewLazy wraps a Gateway factory. The factory runs until it first succeeds.
func NewLazy(factory func(ctx context.Context) (*Gateway, error)) *Lazy {
	return &Lazy{factory: factory}
}

func (l *Lazy) get(ctx context.Context) (*Gateway, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.gateway != nil {
		return l.gateway, nil
	}

	g, err := l.factory(ctx)
	if err != nil {
		return nil, errorf("failed to initialize storage client: %v", err)
	}
	l.gateway = g
	return g, nil
}

func (l *Lazy) BucketExists(ctx context.Context, name string) (bool, error) {
	g, err := l.get(ctx)
	if err != nil {
		return false, err
	}
	return g.BucketExists(ctx, name)
}

func (l *Lazy) EnsureBucket(ctx context.Context, name, location, storageClass string) (bool, error) {
	g, err := l.get(ctx)
	if err != nil {
		return false, err
	}
	return g.EnsureBucket(ctx, name, location, storageClass)
}

func (l *Lazy) UploadFile(ctx context.Context, bucket, sourcePath, destName, contentType string) (string, error) {
	g, err := l.get(ctx)
	if err != nil {
		return "", err
	}
	return g.UploadFile(ctx, bucket, sourcePath, destName, contentType)
}

func (l *Lazy) MakePublic(ctx context.Context, bucket, objectName string) (string, error) {
	g, err := l.get(ctx)
	if err != nil {
		return "", err
	}
	return g.MakePublic(ctx, bucket, objectName)
}

func (l *Lazy) ListBuckets(ctx context.Context) ([]string, error) {
	g, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return g.ListBuckets(ctx)
}

// Close releases the gateway if one was ever created.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.gateway != nil {
		return l.gateway.Close()
	}
	return nil
}
