// Package ror serves the ROR reference mappings (funder to ROR, ROR
// hierarchy, ROR to countries) published to S3, caching one entry per key.
package ror

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/cache"
)

// Mapping names a reference file.
type Mapping string

const (
	FunderToROR    Mapping = "funder_to_ror"
	RORHierarchy   Mapping = "ror_hierarchy"
	RORToCountries Mapping = "ror_to_countries"
)

// Mappings lists every reference file in refresh order.
var Mappings = []Mapping{FunderToROR, RORHierarchy, RORToCountries}

const (
	// TTL is how long cached mapping entries live.
	TTL           = 31 * 24 * time.Hour
	populatedKey  = "populated"
	defaultPrefix = "ror_funder_mapping/"
)

// ObjectGetter is the part of the S3 client the store uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ReferenceStore looks up mapping values, downloading a mapping from S3 the
// first time it is found cold.
type ReferenceStore struct {
	objects ObjectGetter
	bucket  string
	prefix  string
	cache   cache.Cache
	log     logger.Logger

	mu sync.Mutex
}

// NewReferenceStore creates a store reading s3://bucket/prefix<mapping>.json.
func NewReferenceStore(objects ObjectGetter, bucket, prefix string, c cache.Cache, log logger.Logger) *ReferenceStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ReferenceStore{objects: objects, bucket: bucket, prefix: prefix, cache: c, log: log}
}

func valueKey(m Mapping, key string) string { return "ror_ref/" + string(m) + "/" + key }

// FunderROR returns the ROR id for a Crossref funder id suffix.
func (s *ReferenceStore) FunderROR(ctx context.Context, funderID string) (string, bool, error) {
	var ror string
	ok, err := s.Lookup(ctx, FunderToROR, funderID, &ror)
	return ror, ok, err
}

// Hierarchy is the ror_hierarchy entry of one organization.
type Hierarchy struct {
	Ancestors []string `json:"ancestors"`
	Children  []string `json:"children,omitempty"`
}

// Ancestors returns the ancestor ROR ids of rorID.
func (s *ReferenceStore) Ancestors(ctx context.Context, rorID string) ([]string, error) {
	var h Hierarchy
	ok, err := s.Lookup(ctx, RORHierarchy, rorID, &h)
	if err != nil || !ok {
		return nil, err
	}
	return h.Ancestors, nil
}

// Countries returns the country codes of rorID.
func (s *ReferenceStore) Countries(ctx context.Context, rorID string) ([]string, error) {
	var countries []string
	ok, err := s.Lookup(ctx, RORToCountries, rorID, &countries)
	if err != nil || !ok {
		return nil, err
	}
	return countries, nil
}

// Lookup decodes the value of key in mapping into dst. A miss on a cold
// mapping triggers a refresh from S3 first.
func (s *ReferenceStore) Lookup(ctx context.Context, m Mapping, key string, dst any) (bool, error) {
	ok, err := s.cache.Get(ctx, valueKey(m, key), dst)
	if err != nil || ok {
		return ok, err
	}

	populated, err := s.populated(ctx, m)
	if err != nil {
		return false, err
	}
	if populated {
		return false, nil
	}

	if err = s.refreshIfCold(ctx, m); err != nil {
		return false, err
	}
	return s.cache.Get(ctx, valueKey(m, key), dst)
}

func (s *ReferenceStore) populated(ctx context.Context, m Mapping) (bool, error) {
	var marker bool
	ok, err := s.cache.Get(ctx, valueKey(m, populatedKey), &marker)
	return ok && marker, err
}

func (s *ReferenceStore) refreshIfCold(ctx context.Context, m Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	populated, err := s.populated(ctx, m)
	if err != nil || populated {
		return err
	}
	s.log.Info("ROR mapping cache cold, fetching from S3", logger.String("mapping", string(m)))
	_, err = s.refresh(ctx, m)
	return err
}

// Refresh downloads mapping m and rewrites its cache entries. The populated
// marker is written after every value.
func (s *ReferenceStore) Refresh(ctx context.Context, m Mapping) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh(ctx, m)
}

func (s *ReferenceStore) refresh(ctx context.Context, m Mapping) (int, error) {
	key := s.prefix + string(m) + ".json"
	out, err := s.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("download s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}

	var entries map[string]json.RawMessage
	if err = json.Unmarshal(body, &entries); err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	values := make(map[string]any, len(entries))
	for k, v := range entries {
		values[valueKey(m, k)] = v
	}
	if err = s.cache.SetMany(ctx, values, TTL); err != nil {
		return 0, err
	}
	if err = s.cache.Set(ctx, valueKey(m, populatedKey), true, TTL); err != nil {
		return 0, err
	}

	s.log.Info("ROR mapping refreshed",
		logger.String("mapping", string(m)),
		logger.Int("keys", len(entries)),
	)
	return len(entries), nil
}

// RefreshAll refreshes every mapping, stopping at the first failure.
func (s *ReferenceStore) RefreshAll(ctx context.Context) error {
	for _, m := range Mappings {
		if _, err := s.Refresh(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
