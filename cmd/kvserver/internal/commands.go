package internal

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ananthvk/bitkeep"
	"github.com/ananthvk/bitkeep/internal/resp"
)

func errValue(prefix, message string) resp.Value {
	return resp.Value{
		Type:              resp.ValueTypeSimpleError,
		SimpleErrorPrefix: []byte(prefix),
		Buffer:            []byte(message),
	}
}

func internalErr(err error) resp.Value {
	return errValue("INTERNAL_ERR", err.Error())
}

func wrongArgs(command string) resp.Value {
	return errValue("ERR", fmt.Sprintf("wrong number of arguments for '%s' command", command))
}

func handleEcho(args []resp.Value, store *KVStore) resp.Value {
	if len(args) != 1 {
		return wrongArgs("ECHO")
	}
	return resp.Value{Type: resp.ValueTypeBulkString, Buffer: args[0].Buffer}
}

func handlePing(args []resp.Value, store *KVStore) resp.Value {
	switch len(args) {
	case 0:
		return resp.Value{Type: resp.ValueTypeSimpleString, Buffer: []byte("PONG")}
	case 1:
		return resp.Value{Type: resp.ValueTypeBulkString, Buffer: args[0].Buffer}
	default:
		return wrongArgs("PING")
	}
}

func handleGet(args []resp.Value, store *KVStore) resp.Value {
	if len(args) != 1 {
		return wrongArgs("GET")
	}
	value, err := store.Store.Get(args[0].Buffer)
	if err != nil {
		if errors.Is(err, bitkeep.ErrKeyNotFound) {
			return resp.Value{Type: resp.ValueTypeNull}
		}
		return internalErr(err)
	}
	return resp.Value{Type: resp.ValueTypeBulkString, Buffer: value}
}

func handleSet(args []resp.Value, store *KVStore) resp.Value {
	if len(args) != 2 {
		return wrongArgs("SET")
	}
	if err := store.Store.Put(args[0].Buffer, args[1].Buffer); err != nil {
		return internalErr(err)
	}
	return resp.Value{Type: resp.ValueTypeSimpleString, Buffer: []byte("OK")}
}

func handleExists(args []resp.Value, store *KVStore) resp.Value {
	if len(args) == 0 {
		return wrongArgs("EXISTS")
	}
	count := int64(0)
	for _, key := range args {
		if _, err := store.Store.Get(key.Buffer); err == nil {
			count++
		} else if !errors.Is(err, bitkeep.ErrKeyNotFound) {
			return internalErr(err)
		}
	}
	return resp.Value{Type: resp.ValueTypeInteger, Integer: count}
}

// Pattern is ignored (for now, KEYS means KEYS *)
func handleKeys(args []resp.Value, store *KVStore) resp.Value {
	if len(args) != 1 {
		return wrongArgs("KEYS")
	}
	keys := store.Store.Keys()

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	sort.Strings(names)

	values := make([]resp.Value, len(names))
	for i, name := range names {
		values[i] = resp.Value{Type: resp.ValueTypeBulkString, Buffer: []byte(name)}
	}
	return resp.Value{Type: resp.ValueTypeArray, Array: values}
}

func handleDel(args []resp.Value, store *KVStore) resp.Value {
	if len(args) == 0 {
		return wrongArgs("DEL")
	}
	deleteCount := int64(0)
	for _, key := range args {
		existed, err := store.Store.Remove(key.Buffer)
		if err != nil {
			return internalErr(err)
		}
		if existed {
			deleteCount++
		}
	}
	return resp.Value{Type: resp.ValueTypeInteger, Integer: deleteCount}
}

func handleStats(args []resp.Value, store *KVStore) resp.Value {
	if len(args) != 0 {
		return wrongArgs("STATS")
	}
	stats, err := store.Store.Stats()
	if err != nil {
		return internalErr(err)
	}

	fields := []resp.Value{
		{Type: resp.ValueTypeBulkString, Buffer: []byte("instance_id")},
		{Type: resp.ValueTypeBulkString, Buffer: []byte(stats.InstanceID)},
		{Type: resp.ValueTypeBulkString, Buffer: []byte("live_keys")},
		{Type: resp.ValueTypeInteger, Integer: int64(stats.LiveKeys)},
		{Type: resp.ValueTypeBulkString, Buffer: []byte("compaction_running")},
		{Type: resp.ValueTypeInteger, Integer: boolToInt(stats.CompactionRunning)},
		{Type: resp.ValueTypeBulkString, Buffer: []byte("files")},
	}

	fileValues := make([]resp.Value, len(stats.Files))
	for i, f := range stats.Files {
		fileValues[i] = resp.Value{
			Type: resp.ValueTypeArray,
			Array: []resp.Value{
				{Type: resp.ValueTypeInteger, Integer: int64(f.ID)},
				{Type: resp.ValueTypeInteger, Integer: int64(f.NumRecords)},
				{Type: resp.ValueTypeInteger, Integer: int64(f.DeadRecords)},
				{Type: resp.ValueTypeInteger, Integer: f.Size},
				{Type: resp.ValueTypeInteger, Integer: boolToInt(f.Active)},
			},
		}
	}
	fields = append(fields, resp.Value{Type: resp.ValueTypeArray, Array: fileValues})

	return resp.Value{Type: resp.ValueTypeArray, Array: fields}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
