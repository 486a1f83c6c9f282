// Package keys implements the key filter (an allow-set of values for one
// field, loaded before processing) and key logs (sinks receiving every
// value of a field from accepted records). Both can be backed by a text
// file or a Redis set.
package keys

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/metrics"
)

// SetStore is the subset of the Redis client used here.
type SetStore interface {
	SetMembers(ctx context.Context, key string) ([]string, error)
	SetAdd(ctx context.Context, key string, members ...string) error
}

// Filter admits records whose field value is in a preloaded set.
type Filter struct {
	field string
	keys  map[string]struct{}
}

func NewFilter(field string, keys []string) *Filter {
	f := &Filter{field: field, keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		f.keys[k] = struct{}{}
	}
	return f
}

// LoadFilterFile reads newline-separated keys from path. Blank lines are
// ignored.
func LoadFilterFile(field, path string) (*Filter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInput, apperrors.ExitInput, "key filter %s: %v", path, err)
	}
	defer file.Close()
	keys, err := readKeys(file)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInput, apperrors.ExitInput, "key filter %s: %v", path, err)
	}
	return NewFilter(field, keys), nil
}

// LoadFilterRedis reads the members of the Redis set key.
func LoadFilterRedis(ctx context.Context, store SetStore, field, key string) (*Filter, error) {
	keys, err := store.SetMembers(ctx, key)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInput, apperrors.ExitInput, "key filter redis set %s: %v", key, err)
	}
	return NewFilter(field, keys), nil
}

func readKeys(r io.Reader) ([]string, error) {
	var keys []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if k := strings.TrimSpace(sc.Text()); k != "" {
			keys = append(keys, k)
		}
	}
	return keys, sc.Err()
}

func (f *Filter) Field() string { return f.field }

func (f *Filter) Allows(value string) bool {
	_, ok := f.keys[value]
	return ok
}

func (f *Filter) Len() int { return len(f.keys) }

// FileLogger appends one line per value to a file. It is safe for
// concurrent use; each call's values are written contiguously.
type FileLogger struct {
	field   string
	mu      sync.Mutex
	file    *os.File
	w       *bufio.Writer
	metrics *metrics.Metrics
}

// OpenFileLogger opens path for appending, creating it if needed.
func OpenFileLogger(field, path string, m *metrics.Metrics) (*FileLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInput, apperrors.ExitInput, "key log %s: %v", path, err)
	}
	return &FileLogger{field: field, file: file, w: bufio.NewWriter(file), metrics: m}, nil
}

func (l *FileLogger) Field() string { return l.field }

func (l *FileLogger) Log(_ context.Context, values ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, v := range values {
		if _, err := l.w.WriteString(v + "\n"); err != nil {
			return fmt.Errorf("writing key log for %s: %w", l.field, err)
		}
	}
	if l.metrics != nil {
		l.metrics.KeysLogged.WithLabelValues(l.field).Add(float64(len(values)))
	}
	return nil
}

// Close flushes buffered values and closes the file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("flushing key log for %s: %w", l.field, err)
	}
	return l.file.Close()
}

// RedisLogger adds values to a Redis set.
type RedisLogger struct {
	field   string
	key     string
	store   SetStore
	metrics *metrics.Metrics
}

func NewRedisLogger(store SetStore, field, key string, m *metrics.Metrics) *RedisLogger {
	return &RedisLogger{field: field, key: key, store: store, metrics: m}
}

func (l *RedisLogger) Field() string { return l.field }

func (l *RedisLogger) Log(ctx context.Context, values ...string) error {
	if err := l.store.SetAdd(ctx, l.key, values...); err != nil {
		return err
	}
	if l.metrics != nil {
		l.metrics.KeysLogged.WithLabelValues(l.field).Add(float64(len(values)))
	}
	return nil
}

func (l *RedisLogger) Close() error { return nil }
