// Package asicdb implements sai.API on top of a SONiC ASIC_DB (Redis DB 1).
// Every hardware object is a hash at "ASIC_STATE:<object type>:<id>",
// where id is the object's OID or, for entry objects, its canonical JSON key.
//
// OIDs are allocated from the VIDCOUNTER key the same way sairedis does, so
// objects written here are indistinguishable from orchagent's.
package asicdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/util"
	"github.com/newtron-network/switchd/pkg/version"
)

const (
	// DB is the Redis database index of ASIC_DB.
	DB = 1

	tablePrefix   = "ASIC_STATE:"
	vidCounterKey = "VIDCOUNTER"

	// maxTxRetries bounds optimistic-lock retries when another writer
	// touches a watched key between WATCH and EXEC.
	maxTxRetries = 5
)

// Client wraps a Redis client for ASIC_DB access.
type Client struct {
	client    *redis.Client
	switchOID sai.OID
	defaultVR sai.OID
}

var _ sai.API = (*Client)(nil)
var _ sai.Lister = (*Client)(nil)

// New creates a new ASIC_DB client. addr is host:port of the Redis server,
// usually the local end of an SSH tunnel.
func New(addr string, db int) *Client {
	return &Client{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
			OnConnect: func(ctx context.Context, cn *redis.Conn) error {
				return cn.ClientSetName(ctx, version.UserAgent()).Err()
			},
		}),
	}
}

// Connect establishes the Redis connection and discovers the switch and
// default virtual router OIDs.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("asic_db ping: %w", err)
	}

	keys, err := c.scanKeys(ctx, tablePrefix+sai.ObjectTypeSwitch.String()+":*")
	if err != nil {
		return fmt.Errorf("asic_db: cannot discover switch OID: %w", err)
	}
	if len(keys) == 0 {
		return fmt.Errorf("asic_db: no %s object", sai.ObjectTypeSwitch)
	}
	h, err := parseRedisKey(keys[0])
	if err != nil {
		return err
	}
	if c.switchOID, err = h.OID(); err != nil {
		return err
	}

	vr, err := c.client.HGet(ctx, keys[0], sai.SwitchAttrDefaultVirtualRouterID).Result()
	if err != nil {
		return fmt.Errorf("asic_db: cannot read default VR from switch: %w", err)
	}
	if c.defaultVR, err = sai.ParseOID(vr); err != nil {
		return fmt.Errorf("asic_db: %w", err)
	}

	util.WithFields(map[string]interface{}{
		"switch": c.switchOID.String(),
		"vr":     c.defaultVR.String(),
	}).Debug("asic_db connected")
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// SwitchID returns the switch OID discovered by Connect.
func (c *Client) SwitchID() sai.OID { return c.switchOID }

// DefaultVirtualRouter returns the default virtual router OID discovered by
// Connect.
func (c *Client) DefaultVirtualRouter() sai.OID { return c.defaultVR }

// Create implements sai.API.
func (c *Client) Create(ctx context.Context, key sai.Key, attrs sai.Attributes) (sai.Handle, error) {
	t := key.ObjectType()
	if ser := key.Serialize(); ser != "" {
		h := sai.Handle{Type: t, ID: ser}
		err := c.watch(ctx, redisKey(h), func(tx *redis.Tx, rk string) error {
			n, err := tx.Exists(ctx, rk).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: %s", sai.ErrObjectExists, h)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				writeAttrs(ctx, pipe, rk, attrs)
				return nil
			})
			return err
		})
		if err != nil {
			return sai.Handle{}, fmt.Errorf("asic_db create %s: %w", h, err)
		}
		return h, nil
	}

	index, err := c.client.Incr(ctx, vidCounterKey).Result()
	if err != nil {
		return sai.Handle{}, fmt.Errorf("asic_db allocate %s: %w", t, err)
	}
	h := sai.Handle{Type: t, ID: sai.NewOID(t, uint64(index)).String()}
	pipe := c.client.TxPipeline()
	writeAttrs(ctx, pipe, redisKey(h), attrs)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return sai.Handle{}, fmt.Errorf("asic_db create %s: %w", h, err)
	}
	return h, nil
}

// Remove implements sai.API.
func (c *Client) Remove(ctx context.Context, h sai.Handle) error {
	err := c.watch(ctx, redisKey(h), func(tx *redis.Tx, rk string) error {
		if err := mustExist(ctx, tx, rk, h); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, rk)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("asic_db remove: %w", err)
	}
	return nil
}

// GetAttribute implements sai.API.
func (c *Client) GetAttribute(ctx context.Context, h sai.Handle, attr string) (string, error) {
	rk := redisKey(h)
	v, err := c.client.HGet(ctx, rk, attr).Result()
	if err == nil {
		return v, nil
	}
	if err != redis.Nil {
		return "", fmt.Errorf("asic_db get %s: %w", h, err)
	}
	n, err := c.client.Exists(ctx, rk).Result()
	if err != nil {
		return "", fmt.Errorf("asic_db get %s: %w", h, err)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: %s", sai.ErrUnknownHandle, h)
	}
	return "", fmt.Errorf("%w: %s on %s", sai.ErrUnknownAttribute, attr, h)
}

// SetAttribute implements sai.API.
func (c *Client) SetAttribute(ctx context.Context, h sai.Handle, attr, value string) error {
	err := c.watch(ctx, redisKey(h), func(tx *redis.Tx, rk string) error {
		if err := mustExist(ctx, tx, rk, h); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, rk, attr, value)
			pipe.HDel(ctx, rk, "NULL")
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("asic_db set %s: %w", attr, err)
	}
	return nil
}

// Objects implements sai.Lister.
func (c *Client) Objects(ctx context.Context, t sai.ObjectType) ([]sai.Handle, error) {
	keys, err := c.scanKeys(ctx, tablePrefix+t.String()+":*")
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", t, err)
	}
	out := make([]sai.Handle, 0, len(keys))
	for _, k := range keys {
		h, err := parseRedisKey(k)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// Attributes reads every attribute of h. The NULL placeholder of an
// attribute-less object is not returned.
func (c *Client) Attributes(ctx context.Context, h sai.Handle) (sai.Attributes, error) {
	vals, err := c.client.HGetAll(ctx, redisKey(h)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", h, err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%w: %s", sai.ErrUnknownHandle, h)
	}
	delete(vals, "NULL")
	return sai.Attributes(vals), nil
}

// watch runs fn inside WATCH on rk, retrying when another writer wins.
func (c *Client) watch(ctx context.Context, rk string, fn func(tx *redis.Tx, rk string) error) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = c.client.Watch(ctx, func(tx *redis.Tx) error { return fn(tx, rk) }, rk)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		util.WithBackend("asic_db").WithField("key", rk).Debug("watched key changed, retrying")
	}
	return err
}

func mustExist(ctx context.Context, tx *redis.Tx, rk string, h sai.Handle) error {
	n, err := tx.Exists(ctx, rk).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", sai.ErrUnknownHandle, h)
	}
	return nil
}

// writeAttrs queues an HSET of attrs. An object without attributes is
// written with the NULL sentinel so the hash exists (SONiC convention).
func writeAttrs(ctx context.Context, pipe redis.Pipeliner, rk string, attrs sai.Attributes) {
	if len(attrs) == 0 {
		pipe.HSet(ctx, rk, "NULL", "NULL")
		return
	}
	args := make([]interface{}, 0, len(attrs)*2)
	for k, v := range attrs {
		args = append(args, k, v)
	}
	pipe.HSet(ctx, rk, args...)
}

func redisKey(h sai.Handle) string {
	return tablePrefix + h.Type.String() + ":" + h.ID
}

// parseRedisKey splits "ASIC_STATE:SAI_OBJECT_TYPE_X:<id>" into a handle.
// The id may itself contain colons (OIDs, IPv6 addresses in JSON keys).
func parseRedisKey(k string) (sai.Handle, error) {
	rest, ok := strings.CutPrefix(k, tablePrefix)
	if !ok {
		return sai.Handle{}, fmt.Errorf("not an ASIC_STATE key: %q", k)
	}
	typeName, id, ok := strings.Cut(rest, ":")
	if !ok || id == "" {
		return sai.Handle{}, fmt.Errorf("malformed ASIC_STATE key: %q", k)
	}
	t, err := sai.ParseObjectType(typeName)
	if err != nil {
		return sai.Handle{}, err
	}
	return sai.Handle{Type: t, ID: id}, nil
}

// scanKeys uses SCAN to find keys matching a pattern (avoids KEYS on large databases).
func (c *Client) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var allKeys []string
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return nil, err
		}
		allKeys = append(allKeys, keys...)
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return allKeys, nil
}
