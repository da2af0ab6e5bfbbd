//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/go-redis/redis/v8"
)

// Redis database indexes used by the switch.
const (
	ASICDB  = 1
	StateDB = 6
)

// SeedRedis loads a JSON seed file into a specific Redis database.
// The JSON format is: { "SAI_OBJECT_TYPE_X": { "id": { "attr": "value", ... }, ... }, ... }
// Each object becomes a Redis hash at key "ASIC_STATE:SAI_OBJECT_TYPE_X:id".
func SeedRedis(t *testing.T, addr string, db int, seedFile string) {
	t.Helper()

	data, err := os.ReadFile(seedFile)
	if err != nil {
		t.Fatalf("reading seed file %s: %v", seedFile, err)
	}

	var tables map[string]map[string]map[string]string
	if err := json.Unmarshal(data, &tables); err != nil {
		t.Fatalf("parsing seed file %s: %v", seedFile, err)
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	ctx := context.Background()

	for objType, objects := range tables {
		for id, attrs := range objects {
			redisKey := "ASIC_STATE:" + objType + ":" + id
			if len(attrs) == 0 {
				if err := client.HSet(ctx, redisKey, "NULL", "NULL").Err(); err != nil {
					t.Fatalf("seeding %s: %v", redisKey, err)
				}
				continue
			}
			args := make([]interface{}, 0, len(attrs)*2)
			for k, v := range attrs {
				args = append(args, k, v)
			}
			if err := client.HSet(ctx, redisKey, args...).Err(); err != nil {
				t.Fatalf("seeding %s: %v", redisKey, err)
			}
		}
	}
}

// FlushDB flushes a specific Redis database.
func FlushDB(t *testing.T, addr string, db int) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flushing DB %d: %v", db, err)
	}
}

// SetupASICDB flushes ASIC_DB and seeds it with the switch and default
// virtual router objects from asicdb.json.
func SetupASICDB(t *testing.T) {
	t.Helper()

	addr := RedisAddr()
	FlushDB(t, addr, ASICDB)
	SeedRedis(t, addr, ASICDB, SeedPath("asicdb.json"))
}

// ReadObject reads the hash of one ASIC_STATE object.
func ReadObject(t *testing.T, objType, id string) map[string]string {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: RedisAddr(), DB: ASICDB})
	defer client.Close()

	redisKey := "ASIC_STATE:" + objType + ":" + id
	vals, err := client.HGetAll(context.Background(), redisKey).Result()
	if err != nil {
		t.Fatalf("reading %s: %v", redisKey, err)
	}
	return vals
}

// SetupStateDB flushes STATE_DB and writes one PORT_TABLE row per port with
// the given oper_status.
func SetupStateDB(t *testing.T, operStatus map[string]string) {
	t.Helper()

	addr := RedisAddr()
	FlushDB(t, addr, StateDB)

	client := redis.NewClient(&redis.Options{Addr: addr, DB: StateDB})
	defer client.Close()

	ctx := context.Background()
	for name, oper := range operStatus {
		err := client.HSet(ctx, "PORT_TABLE|"+name,
			"admin_status", "up", "oper_status", oper, "speed", "100000", "mtu", "9100").Err()
		if err != nil {
			t.Fatalf("seeding PORT_TABLE|%s: %v", name, err)
		}
	}
}
