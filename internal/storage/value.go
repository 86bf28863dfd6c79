package storage

import "github.com/kvserver/redis/internal/dynstr"

// ValueType identifies which typed container a Value holds.
type ValueType int

const (
	StringType ValueType = iota
	ListType
	HashType
	SetType
	ZSetType
)

func (t ValueType) String() string {
	switch t {
	case StringType:
		return "string"
	case ListType:
		return "list"
	case HashType:
		return "hash"
	case SetType:
		return "set"
	case ZSetType:
		return "zset"
	default:
		return "none"
	}
}

// NoExpiry is the sentinel ExpiresAtMs value meaning "never expires".
const NoExpiry int64 = -1

// Value is a single keyspace entry: a typed container plus its optional
// absolute expiration timestamp, expressed in milliseconds since the Unix
// epoch (NoExpiry when the key never expires). Data holds one of:
// dynstr.DynStr (StringType), *List, *Hash, *Set, *ZSet.
type Value struct {
	Data         interface{}
	ExpiresAtMs  int64
	Type         ValueType
	LastAccessMs int64 // last time any command referenced this key; drives allkeys-lru eviction
}

// Expired reports whether the value's absolute expiration timestamp has
// passed as of nowMs (milliseconds since epoch).
func (v *Value) Expired(nowMs int64) bool {
	return v.ExpiresAtMs != NoExpiry && v.ExpiresAtMs <= nowMs
}

// AsString returns the value's DynStr payload and whether Data actually
// held one.
func (v *Value) AsString() (dynstr.DynStr, bool) {
	d, ok := v.Data.(dynstr.DynStr)
	return d, ok
}
