package ror_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/cache"
	"github.com/datacite/lupo-sub003/internal/ror"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	gets    map[string]int
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets[*in.Key]++
	body, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func newStore(t *testing.T) (*ror.ReferenceStore, *fakeS3, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	objects := &fakeS3{
		objects: map[string]string{
			"analysis/ror_funder_mapping/funder_to_ror.json":    `{"100000001":"https://ror.org/021nxhr62"}`,
			"analysis/ror_funder_mapping/ror_hierarchy.json":    `{"https://ror.org/021nxhr62":{"ancestors":["https://ror.org/00a"],"children":[]}}`,
			"analysis/ror_funder_mapping/ror_to_countries.json": `{"https://ror.org/021nxhr62":["US"]}`,
		},
		gets: map[string]int{},
	}
	store := ror.NewReferenceStore(objects, "analysis", "", cache.NewRedis(client, "test"), logger.NewNop())
	return store, objects, mr
}

func TestReferenceStore_ColdLookupRefreshesOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, objects, mr := newStore(t)

	got, ok, err := store.FunderROR(ctx, "100000001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://ror.org/021nxhr62", got)
	assert.True(t, mr.Exists("test:cache:ror_ref/funder_to_ror/populated"))

	_, ok, err = store.FunderROR(ctx, "999")
	require.NoError(t, err)
	assert.False(t, ok, "warm miss does not download again")
	assert.Equal(t, 1, objects.gets["ror_funder_mapping/funder_to_ror.json"])
}

func TestReferenceStore_HierarchyAndCountries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _, _ := newStore(t)

	ancestors, err := store.Ancestors(ctx, "https://ror.org/021nxhr62")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://ror.org/00a"}, ancestors)

	countries, err := store.Countries(ctx, "https://ror.org/021nxhr62")
	require.NoError(t, err)
	assert.Equal(t, []string{"US"}, countries)

	none, err := store.Countries(ctx, "https://ror.org/unknown")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestReferenceStore_RefreshAll(t *testing.T) {
	t.Parallel()
	store, objects, mr := newStore(t)

	require.NoError(t, store.RefreshAll(context.Background()))
	for _, m := range ror.Mappings {
		assert.True(t, mr.Exists("test:cache:ror_ref/"+string(m)+"/populated"))
		assert.Equal(t, 1, objects.gets["ror_funder_mapping/"+string(m)+".json"])
	}
}

func TestReferenceStore_DownloadFailure(t *testing.T) {
	t.Parallel()
	store, objects, mr := newStore(t)
	delete(objects.objects, "analysis/ror_funder_mapping/funder_to_ror.json")

	_, _, err := store.FunderROR(context.Background(), "100000001")
	require.Error(t, err)
	assert.False(t, mr.Exists("test:cache:ror_ref/funder_to_ror/populated"))
}
