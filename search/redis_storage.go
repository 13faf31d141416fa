package search

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "hospitalbot:study"

// RedisStorage keeps studies in redis so that a search can be inspected
// or resumed from another process. Keys per study:
//
//	<prefix>:<study>:direction  string
//	<prefix>:<study>:next       trial counter
//	<prefix>:<study>:trials     hash of trial number to JSON record
type RedisStorage struct {
	client *redis.Client
	prefix string
}

var _ Storage = &RedisStorage{}

func NewRedisStorage(addr string) *RedisStorage {
	return NewRedisStorageFromClient(redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
	}), DefaultRedisPrefix)
}

func NewRedisStorageFromClient(client *redis.Client, prefix string) *RedisStorage {
	return &RedisStorage{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisStorage) key(study, suffix string) string {
	return r.prefix + ":" + study + ":" + suffix
}

// Ping checks that the server is reachable
func (r *RedisStorage) Ping(ctx context.Context) error {
	return errors.Wrap(r.client.Ping(ctx).Err(), "pinging redis")
}

func (r *RedisStorage) CreateStudy(ctx context.Context, name string, direction Direction) error {
	key := r.key(name, "direction")
	if err := r.client.SetNX(ctx, key, direction.String(), 0).Err(); err != nil {
		return errors.Wrap(err, "creating study")
	}
	existing, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return errors.Wrap(err, "reading study direction")
	}
	if existing != direction.String() {
		return errors.Wrap(ErrDirectionMismatch, name)
	}
	return nil
}

func (r *RedisStorage) exists(ctx context.Context, study string) error {
	n, err := r.client.Exists(ctx, r.key(study, "direction")).Result()
	if err != nil {
		return errors.Wrap(err, "reading study")
	}
	if n == 0 {
		return errors.Wrap(ErrUnknownStudy, study)
	}
	return nil
}

func (r *RedisStorage) NextTrialNumber(ctx context.Context, study string) (int, error) {
	if err := r.exists(ctx, study); err != nil {
		return 0, err
	}
	n, err := r.client.Incr(ctx, r.key(study, "next")).Result()
	if err != nil {
		return 0, errors.Wrap(err, "reserving trial number")
	}
	return int(n - 1), nil
}

func (r *RedisStorage) SaveTrial(ctx context.Context, study string, trial FrozenTrial) error {
	bs, err := json.Marshal(trial)
	if err != nil {
		return errors.Wrap(err, "encoding trial")
	}
	if err := r.client.HSet(ctx, r.key(study, "trials"), strconv.Itoa(trial.Number), string(bs)).Err(); err != nil {
		return errors.Wrapf(err, "saving trial %d", trial.Number)
	}
	return nil
}

func (r *RedisStorage) Trials(ctx context.Context, study string) ([]FrozenTrial, error) {
	if err := r.exists(ctx, study); err != nil {
		return nil, err
	}
	records, err := r.client.HGetAll(ctx, r.key(study, "trials")).Result()
	if err != nil {
		return nil, errors.Wrap(err, "reading trials")
	}
	trials := make([]FrozenTrial, 0, len(records))
	for number, record := range records {
		t := FrozenTrial{}
		if err := json.Unmarshal([]byte(record), &t); err != nil {
			return nil, errors.Wrapf(err, "decoding trial %s", number)
		}
		trials = append(trials, t)
	}
	sort.Slice(trials, func(i, j int) bool { return trials[i].Number < trials[j].Number })
	return trials, nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
