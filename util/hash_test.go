package util_test

import (
	"testing"

	"github.com/ehgkals/realtime-fin-mq/util"
)

func TestHashDeterministic(t *testing.T) {
	key := "my-key"
	hash1 := util.Hash(key)
	hash2 := util.Hash(key)

	if hash1 != hash2 {
		t.Errorf("Hash should be deterministic, got %v and %v", hash1, hash2)
	}
}

func TestHashDifferentKeys(t *testing.T) {
	key1 := "key-one"
	key2 := "key-two"

	if util.Hash(key1) == util.Hash(key2) {
		t.Errorf("Hash should produce different results for different keys")
	}
}

func TestHashBucketIndex(t *testing.T) {
	buckets := 16
	keys := []string{"a", "b", "c", "d", "e"}

	for _, key := range keys {
		index := util.Hash(key) % buckets
		if index < 0 || index >= buckets {
			t.Errorf("bucket index out of bounds: %v", index)
		}
	}
}
