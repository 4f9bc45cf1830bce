// Package redis keeps the volatile half of the identity state, one-time
// challenges and bearer sessions, in Redis with key TTLs matched to the
// record lifetimes. Durable records (officials, credentials) stay in the
// base store; Overlay composes the two.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"fleetgov.org/internal/auth"
)

const (
	challengeKeyPrefix = "fleetgov:otp:challenge:"
	pendingKeyPrefix   = "fleetgov:otp:pending:"
	sessionKeyPrefix   = "fleetgov:session:"
	officialKeyPrefix  = "fleetgov:session:official:"
)

// Overlay serves challenges and sessions from Redis and delegates everything
// else to the base store.
type Overlay struct {
	base auth.Store
	rdb  *goredis.Client
}

var _ auth.Store = (*Overlay)(nil)

func NewOverlay(base auth.Store, rdb *goredis.Client) *Overlay {
	return &Overlay{base: base, rdb: rdb}
}

// Connect opens a client and verifies the server is reachable.
func Connect(ctx context.Context, addr string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (o *Overlay) Officials() auth.OfficialStore     { return o.base.Officials() }
func (o *Overlay) Credentials() auth.CredentialStore { return o.base.Credentials() }
func (o *Overlay) Challenges() auth.ChallengeStore   { return &challengeStore{rdb: o.rdb} }
func (o *Overlay) Sessions() auth.SessionStore       { return &sessionStore{rdb: o.rdb} }

// Challenges ----------------------------------------------------------------

type challengeStore struct{ rdb *goredis.Client }

func (s *challengeStore) Replace(ctx context.Context, ch *auth.Challenge) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	ttl := time.Until(ch.ExpiresAt)
	if ttl <= 0 {
		return auth.ErrInvalidInput
	}
	pendingKey := pendingKeyPrefix + strconv.FormatInt(ch.OfficialID, 10)

	// Retire any prior challenge before the new one becomes visible.
	prior, err := s.rdb.Get(ctx, pendingKey).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return err
	}
	pipe := s.rdb.TxPipeline()
	if prior != "" {
		pipe.Del(ctx, challengeKeyPrefix+prior)
	}
	pipe.Set(ctx, challengeKeyPrefix+ch.ID, payload, ttl)
	pipe.Set(ctx, pendingKey, ch.ID, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *challengeStore) Pending(ctx context.Context, officialID int64) (*auth.Challenge, error) {
	id, err := s.rdb.Get(ctx, pendingKeyPrefix+strconv.FormatInt(officialID, 10)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	raw, err := s.rdb.Get(ctx, challengeKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	var ch auth.Challenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// Consume deletes the challenge key. GETDEL is atomic, so of two concurrent
// verifiers only one observes the value.
func (s *challengeStore) Consume(ctx context.Context, challengeID string) error {
	raw, err := s.rdb.GetDel(ctx, challengeKeyPrefix+challengeID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return auth.ErrNotFound
		}
		return err
	}
	var ch auth.Challenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return err
	}
	s.rdb.Del(ctx, pendingKeyPrefix+strconv.FormatInt(ch.OfficialID, 10))
	return nil
}

// Sessions ------------------------------------------------------------------

type sessionStore struct{ rdb *goredis.Client }

func (s *sessionStore) Create(ctx context.Context, sess *auth.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return auth.ErrInvalidInput
	}
	officialKey := officialKeyPrefix + strconv.FormatInt(sess.OfficialID, 10)

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+sess.ID, payload, ttl)
	pipe.SAdd(ctx, officialKey, sess.ID)
	pipe.Expire(ctx, officialKey, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *sessionStore) Find(ctx context.Context, id string) (*auth.Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	var sess auth.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *sessionStore) Revoke(ctx context.Context, id string) error {
	raw, err := s.rdb.GetDel(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return auth.ErrNotFound
		}
		return err
	}
	var sess auth.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return err
	}
	s.rdb.SRem(ctx, officialKeyPrefix+strconv.FormatInt(sess.OfficialID, 10), id)
	return nil
}

func (s *sessionStore) RevokeAll(ctx context.Context, officialID int64) error {
	officialKey := officialKeyPrefix + strconv.FormatInt(officialID, 10)
	ids, err := s.rdb.SMembers(ctx, officialKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKeyPrefix+id)
	}
	keys = append(keys, officialKey)
	return s.rdb.Del(ctx, keys...).Err()
}
