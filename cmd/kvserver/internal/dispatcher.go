package internal

import "github.com/ananthvk/bitkeep/internal/resp"

type CommandFunc func(args []resp.Value, store *KVStore) resp.Value

var Commands = map[string]CommandFunc{
	"ECHO":   handleEcho,
	"PING":   handlePing,
	"GET":    handleGet,
	"SET":    handleSet,
	"DEL":    handleDel,
	"EXISTS": handleExists,
	"KEYS":   handleKeys,
	"STATS":  handleStats,
}
