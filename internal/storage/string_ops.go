package storage

import (
	"strconv"

	"github.com/kvserver/redis/internal/dynstr"
)

// ==================== STRING OPERATIONS ====================

// Set stores a string value with an optional absolute expiry.
func (d *Database) Set(key string, value dynstr.DynStr, expiresAtMs int64) {
	d.data[key] = &Value{Data: value, ExpiresAtMs: expiresAtMs, Type: StringType}
	if expiresAtMs == NoExpiry {
		delete(d.withExpiry, key)
	} else {
		d.withExpiry[key] = struct{}{}
	}
}

// Get retrieves a string value, lazily expiring it if its time has passed.
func (d *Database) Get(key string, nowMs int64) (dynstr.DynStr, bool, error) {
	val, exists := d.data[key]
	if !exists {
		return dynstr.DynStr{}, false, nil
	}
	if val.Expired(nowMs) {
		d.deleteKey(key)
		return dynstr.DynStr{}, false, nil
	}
	if val.Type != StringType {
		return dynstr.DynStr{}, false, ErrWrongType
	}
	str, _ := val.AsString()
	return str, true, nil
}

// Append appends payload to the string at key (creating it if absent),
// adopting DynStr's possibly-reallocated return value, and reports the
// resulting length.
func (d *Database) Append(key string, payload []byte, nowMs int64) (int, error) {
	val, exists := d.data[key]
	if exists && val.Expired(nowMs) {
		d.deleteKey(key)
		exists = false
	}

	var current dynstr.DynStr
	if exists {
		if val.Type != StringType {
			return 0, ErrWrongType
		}
		current, _ = val.AsString()
	}

	grown := current.Append(payload)
	d.data[key] = &Value{Data: grown, ExpiresAtMs: NoExpiry, Type: StringType}
	if exists && val.ExpiresAtMs != NoExpiry {
		d.data[key].ExpiresAtMs = val.ExpiresAtMs
	} else {
		delete(d.withExpiry, key)
	}
	return grown.Len(), nil
}

// StrLen returns the length of the string at key, 0 if absent.
func (d *Database) StrLen(key string, nowMs int64) (int, error) {
	str, exists, err := d.Get(key, nowMs)
	if err != nil || !exists {
		return 0, err
	}
	return str.Len(), nil
}

// GetRange extracts a byte range using GETRANGE semantics.
func (d *Database) GetRange(key string, start, end int, nowMs int64) ([]byte, error) {
	str, exists, err := d.Get(key, nowMs)
	if err != nil || !exists {
		return nil, err
	}
	return str.Range(start, end), nil
}

// IncrBy increments the integer value of key by delta, storing the result
// back as its canonical decimal representation. 64-bit wraparound on
// overflow is permitted (matches signed int64 arithmetic overflow).
func (d *Database) IncrBy(key string, delta int64, nowMs int64) (int64, error) {
	val, exists := d.data[key]
	if exists && val.Expired(nowMs) {
		d.deleteKey(key)
		exists = false
	}

	var current int64
	if exists {
		if val.Type != StringType {
			return 0, ErrWrongType
		}
		str, _ := val.AsString()
		parsed, err := strconv.ParseInt(str.String(), 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		current = parsed
	}

	next := current + delta
	expiresAtMs := int64(NoExpiry)
	if exists {
		expiresAtMs = val.ExpiresAtMs
	}
	d.data[key] = &Value{
		Data:        dynstr.NewFromString(strconv.FormatInt(next, 10)),
		ExpiresAtMs: expiresAtMs,
		Type:        StringType,
	}
	return next, nil
}

// IncrByFloat increments the float value of key by delta.
func (d *Database) IncrByFloat(key string, delta float64, nowMs int64) (float64, error) {
	val, exists := d.data[key]
	if exists && val.Expired(nowMs) {
		d.deleteKey(key)
		exists = false
	}

	var current float64
	if exists {
		if val.Type != StringType {
			return 0, ErrWrongType
		}
		str, _ := val.AsString()
		parsed, err := strconv.ParseFloat(str.String(), 64)
		if err != nil {
			return 0, ErrNotFloat
		}
		current = parsed
	}

	next := current + delta
	expiresAtMs := int64(NoExpiry)
	if exists {
		expiresAtMs = val.ExpiresAtMs
	}
	d.data[key] = &Value{
		Data:        dynstr.NewFromString(strconv.FormatFloat(next, 'f', -1, 64)),
		ExpiresAtMs: expiresAtMs,
		Type:        StringType,
	}
	return next, nil
}
