package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"marquee/internal/catalog"
)

// Producer yields one batch of normalized records.
type Producer func(ctx context.Context) ([]catalog.NormalizedRecord, error)

// Failure records a producer that returned an error.
type Failure struct {
	Key string
	Err error
}

func (f Failure) Error() string { return fmt.Sprintf("producer %s: %v", f.Key, f.Err) }

func (f Failure) Unwrap() error { return f.Err }

// Collected is the combined output of a Collect call.
type Collected struct {
	Records  []catalog.NormalizedRecord
	Counts   map[string]int
	Failures []Failure
}

// Registry maps producer keys (usually venue or feed names) to producers.
type Registry struct {
	producers map[string]Producer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{producers: make(map[string]Producer)}
}

// Register adds or replaces the producer for key.
func (r *Registry) Register(key string, producer Producer) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("register producer: empty key")
	}
	if producer == nil {
		return fmt.Errorf("register producer %s: nil producer", key)
	}
	r.producers[key] = producer
	return nil
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.producers))
	for key := range r.producers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Collect runs the selected producers (all when keys is empty) in key order.
// A failing producer is reported in Failures and does not drop the records
// of the others. Unknown keys are reported as failures.
func (r *Registry) Collect(ctx context.Context, keys ...string) Collected {
	if len(keys) == 0 {
		keys = r.Keys()
	}
	out := Collected{Counts: make(map[string]int, len(keys))}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			out.Failures = append(out.Failures, Failure{Key: key, Err: err})
			continue
		}
		producer, ok := r.producers[key]
		if !ok {
			out.Failures = append(out.Failures, Failure{Key: key, Err: fmt.Errorf("unknown producer")})
			continue
		}
		records, err := producer(ctx)
		if err != nil {
			out.Failures = append(out.Failures, Failure{Key: key, Err: err})
			continue
		}
		out.Records = append(out.Records, records...)
		out.Counts[key] = len(records)
	}
	return out
}
