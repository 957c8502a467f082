package canonical

import (
	"context"
	"fmt"
	stdtime "time"
)

type PrimaryKey interface {
	~string | ~int | ~int64 |
		// UUIDs, ULIDs, etc.
		~[16]byte
}

// Widget is a stored widget.
//
//builder:gen
type Widget[K PrimaryKey, V any, S ~[]V] struct {
	// ID identifies the widget.
	ID    K
	Name  string  `json:"name" builder:"into=fmt.Stringer,via=describe"`
	Tags  []V     `builder:"each=Tag"`
	Items S
	Owner *string
	Size  int          `builder:"default=Self{}.defaultSize()"`
	Seen  stdtime.Time `builder:"default=stdtime.Unix(0, 0)"`
	Note  string       `builder:"optional"`
	cache map[K]V      `builder:"skip=map[K]V{}"`
}

func (Widget[K, V, S]) defaultSize() int { return 42 }

func describe(s fmt.Stringer) string { return s.String() }

// Fetch loads ids, at most limit of them.
//
//builder:gen finish=Run
//builder:param limit default=10
func Fetch[K PrimaryKey](ctx context.Context, ids []K, limit int, opts ...string) ([]K, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Repo stores names by key.
type Repo[K PrimaryKey] struct{ byKey map[K]string }

// Save stores name under key.
//
//builder:gen
//builder:param name name=Named
func (r *Repo[K]) Save(key K, name string) error {
	if name == "" {
		return fmt.Errorf("empty name for %v", key)
	}
	r.byKey[key] = name
	return nil
}

//builder:gen
func sut[T any](arg *****T) T { return *****arg }
