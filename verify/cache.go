package verify

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// Cache memoizes a function's verification result by the SHA3-256
// hash of its encoded instruction stream plus its declared arity and
// entry label, so
// a host compiler driver that resubmits unchanged functions across
// incremental builds can skip re-running the abstract interpreter.
// Grounded on the teacher's pervasive use of SHA3 for content
// addressing.
type Cache struct {
	mu  sync.Mutex
	hit map[[32]byte]cacheEntry
}

type cacheEntry struct {
	result *FunctionResult
	diags  []diag.Diagnostic
}

func NewCache() *Cache {
	return &Cache{hit: map[[32]byte]cacheEntry{}}
}

func (c *Cache) lookup(fn *ir.Function) ([32]byte, cacheEntry, bool) {
	key := hashFunction(fn)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.hit[key]
	return key, e, ok
}

func (c *Cache) store(key [32]byte, result *FunctionResult, diags []diag.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hit[key] = cacheEntry{result: result, diags: diags}
}

// hashFunction hashes a deterministic encoding of fn's instruction
// stream, arity and entry label. It deliberately ignores fn.Name, since renaming a
// function without touching its body should still hit the cache.
func hashFunction(fn *ir.Function) [32]byte {
	h := sha3.New256()
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(fn.Arity))
	binary.BigEndian.PutUint32(buf[4:8], uint32(fn.Entry))
	h.Write(buf[:])
	for _, inst := range fn.Code {
		hashInstruction(h, inst)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

func hashInstruction(h interface{ Write([]byte) (int, error) }, inst ir.Instruction) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(inst.Op))
	h.Write(buf[:])
	h.Write([]byte(inst.Ext))
	for _, a := range inst.Args {
		hashOperand(h, a)
	}
}

func hashOperand(h interface{ Write([]byte) (int, error) }, op ir.Operand) {
	var buf [1 + 4 + 4 + 8 + 8]byte
	buf[0] = byte(op.Kind)
	binary.BigEndian.PutUint32(buf[1:5], uint32(op.Reg))
	binary.BigEndian.PutUint32(buf[5:9], uint32(op.Label))
	binary.BigEndian.PutUint64(buf[9:17], uint64(op.Int))
	binary.BigEndian.PutUint64(buf[17:25], math.Float64bits(op.Float))
	h.Write(buf[:])
	h.Write([]byte(op.Atom))
	if op.Lit != nil {
		h.Write([]byte(fmt.Sprintf("%#v", op.Lit)))
	}
	for _, e := range op.List {
		hashOperand(h, e)
	}
}
