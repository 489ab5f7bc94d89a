package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Component field helpers for common component names
func Component(name string) Field {
	return String("component", name)
}

func Factory(name string) Field {
	return String("factory", name)
}

func ScopeID(id string) Field {
	return String("scope_id", id)
}

func Phase(name string) Field {
	return String("phase", name)
}

func Operation(op string) Field {
	return String("operation", op)
}

func RefCount(n int) Field {
	return Int("ref_count", n)
}

func Isolation(level string) Field {
	return String("isolation", level)
}

func Status(s string) Field {
	return String("status", s)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}
