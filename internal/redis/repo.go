// Package redis implements the popcorn store on top of a Redis server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/gomodule/redigo/redis"

	"github.com/jdholdren/popcorn/internal/popcorn"
)

// Ensure Repo implements the Repository interface
var _ popcorn.Repository = (*Repo)(nil)

// Repo issues every operation over a shared connection pool. It holds no
// other state, so it is safe for concurrent use.
type Repo struct {
	pool *redis.Pool
}

func New(pool *redis.Pool) Repo {
	return Repo{pool: pool}
}

func (r Repo) conn(ctx context.Context) (redis.Conn, error) {
	c, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting connection: %w", err)
	}

	return c, nil
}

// Time is the store's clock in milliseconds.
func (r Repo) Time(ctx context.Context) (int64, error) {
	c, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer c.Close()

	return storeTime(c)
}

func storeTime(c redis.Conn) (int64, error) {
	t, err := redis.Int64s(c.Do("TIME"))
	if err != nil {
		return 0, fmt.Errorf("error reading store time: %w", err)
	}
	if len(t) != 2 {
		return 0, fmt.Errorf("unexpected store time reply: %v", t)
	}

	return t[0]*1000 + int64(math.Round(float64(t[1])/1000)), nil
}

// exec runs the commands queued after MULTI.
//
// Returns redis.ErrNil when a watched key changed and nothing was applied.
func exec(c redis.Conn) ([]any, error) {
	replies, err := redis.Values(c.Do("EXEC"))
	if err != nil {
		return nil, err
	}
	for _, reply := range replies {
		if rErr, ok := reply.(redis.Error); ok {
			return nil, rErr
		}
	}

	return replies, nil
}

// hgetall reads a flat record into dst.
//
// Returns popcorn.ErrNotFound if there is no record under key.
func hgetall(c redis.Conn, key string, dst any) error {
	vals, err := redis.Values(c.Do("HGETALL", key))
	if err != nil {
		return err
	}

	return scanRecord(vals, dst)
}

func scanRecord(vals []any, dst any) error {
	if len(vals) == 0 {
		return popcorn.ErrNotFound
	}
	if err := redis.ScanStruct(vals, dst); err != nil {
		return fmt.Errorf("error scanning record: %w", err)
	}

	return nil
}

// members lists a set in sorted order.
func (r Repo) members(ctx context.Context, key string) ([]string, error) {
	c, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	ids, err := redis.Strings(c.Do("SMEMBERS", key))
	if err != nil && !errors.Is(err, redis.ErrNil) {
		return nil, fmt.Errorf("error listing %s: %w", key, err)
	}
	if ids == nil {
		ids = []string{}
	}
	slices.Sort(ids)

	return ids, nil
}
