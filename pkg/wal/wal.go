// Package wal implements the broker's write-ahead log: a single
// append-only, line-delimited JSON file written before a message is
// admitted into the queue.
package wal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/ehgkals/realtime-fin-mq/pkg/types"
	"github.com/ehgkals/realtime-fin-mq/util"
)

// WAL serializes appends behind a mutex and opens/closes the underlying
// file on every call, trading throughput for simplicity and crash safety:
// there is never a dangling file handle to lose writes on an unclean exit.
type WAL struct {
	mu   sync.Mutex
	path string
}

// Open ensures the WAL's parent directory exists and returns a handle
// ready to append. It does not create the file itself; Append does that
// lazily on first write.
func Open(path string) (*WAL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &WAL{path: path}, nil
}

// Append serializes msg to a single JSON line and appends it to the log.
// I/O errors are logged, not returned: the live path continues to rely on
// replication and the queue, and durability degrades gracefully rather
// than blocking admission.
func (w *WAL) Append(msg types.Message) {
	line, err := json.Marshal(msg)
	if err != nil {
		util.Warn("[wal] failed to marshal message %s: %v", msg.ID, err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		util.Warn("[wal] failed to open %s: %v", w.path, err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		util.Warn("[wal] failed to append message %s: %v", msg.ID, err)
	}
}

// Replay line-iterates the log file and invokes fn for each decodable
// record, in file order. A corrupt trailing line is skipped with a
// warning rather than aborting the replay. Missing files replay zero
// records, which is the expected first-run state.
func (w *WAL) Replay(fn func(types.Message)) error {
	// Records are handed to fn only after the lock below is released, so fn
	// may itself append to this log (e.g. via Broker.EnqueueFromPeer).
	var msgs []types.Message
	defer func() {
		for _, msg := range msgs {
			fn(msg)
		}
	}()

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.Open(w.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg types.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			util.Warn("[wal] skipping corrupt line in %s: %v", w.path, err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return scanner.Err()
}
