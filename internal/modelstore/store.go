// Package modelstore persists trained model blobs. The blob is opaque here;
// encoding and validation belong to the predictor.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var ErrNotFound = errors.New("model blob not found")

type BlobStore interface {
	Save(ctx context.Context, key string, blob []byte) error
	// Load returns ErrNotFound when nothing was saved under key.
	Load(ctx context.Context, key string) ([]byte, error)
	Close() error
}

type Options struct {
	Kind         string // file, redis, postgres, badger or none
	Path         string
	RedisAddr    string
	PostgresConn string
	BadgerDir    string
}

// Open builds the store selected by opts.Kind.
func Open(ctx context.Context, opts Options, log *slog.Logger) (BlobStore, error) {
	switch opts.Kind {
	case "", "none":
		return Nop{}, nil
	case "file":
		return NewFile(opts.Path)
	case "redis":
		return NewRedis(ctx, opts.RedisAddr)
	case "postgres":
		return NewPostgres(ctx, opts.PostgresConn)
	case "badger":
		return NewBadger(opts.BadgerDir, log)
	default:
		return nil, fmt.Errorf("unknown model store %q", opts.Kind)
	}
}

// Nop keeps nothing.
type Nop struct{}

func (Nop) Save(context.Context, string, []byte) error   { return nil }
func (Nop) Load(context.Context, string) ([]byte, error) { return nil, ErrNotFound }
func (Nop) Close() error                                 { return nil }
