package external_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/infrastructure/retry"
	"github.com/datacite/lupo-sub003/internal/cache"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/external"
)

func fastConfig(baseURL string) external.Config {
	return external.Config{
		BaseURL: baseURL,
		Delay:   time.Millisecond,
		Retry:   retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
}

func newDeps(t *testing.T) external.Deps {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return external.Deps{Cache: cache.NewRedis(client, "test"), Logger: logger.NewNop()}
}

func TestRAClient_Agency(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/ra/10.5061":
			_, _ = w.Write([]byte(`[{"DOI":"10.5061","RA":"DataCite"}]`))
		case "/ra/10.1000":
			_, _ = w.Write([]byte(`[{"DOI":"10.1000","RA":"Crossref"}]`))
		default:
			_, _ = w.Write([]byte(`[{"DOI":"10.9999","status":"DOI does not exist"}]`))
		}
	}))
	t.Cleanup(srv.Close)

	c := external.NewRAClient(fastConfig(srv.URL), newDeps(t))
	ctx := context.Background()

	ra, err := c.Agency(ctx, "https://doi.org/10.5061/dryad.8515")
	require.NoError(t, err)
	assert.Equal(t, external.AgencyDataCite, ra)

	ra, err = c.Agency(ctx, "10.5061")
	require.NoError(t, err)
	assert.Equal(t, external.AgencyDataCite, ra)
	assert.Equal(t, int32(1), calls.Load(), "second lookup is cached")

	_, err = c.Agency(ctx, "10.9999/x")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = c.Agency(ctx, "not-a-doi")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRAClient_DOIsToImport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ra/10.5061":
			_, _ = w.Write([]byte(`[{"RA":"DataCite"}]`))
		case "/ra/10.1000":
			_, _ = w.Write([]byte(`[{"RA":"Crossref"}]`))
		default:
			_, _ = w.Write([]byte(`[{"status":"DOI does not exist"}]`))
		}
	}))
	t.Cleanup(srv.Close)

	c := external.NewRAClient(fastConfig(srv.URL), newDeps(t))
	got, err := c.DOIsToImport(context.Background(),
		"https://doi.org/10.5061/a",
		"https://doi.org/10.1000/B",
		"https://doi.org/10.13039/501100000780",
		"https://doi.org/10.9999/unknown",
		"https://example.org/not-a-doi",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.1000/b"}, got)
}

func TestCrossrefClient_MemberID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "info@datacite.org", r.URL.Query().Get("mailto"))
		switch {
		case strings.HasSuffix(r.URL.Path, "/10.1000/found"):
			_, _ = w.Write([]byte(`{"status":"ok","message":{"DOI":"10.1000/found","member":"297"}}`))
		case strings.HasSuffix(r.URL.Path, "/10.1000/missing"):
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := fastConfig(srv.URL)
	cfg.Mailto = "info@datacite.org"
	c := external.NewCrossrefClient(cfg, newDeps(t))
	ctx := context.Background()

	id, err := c.MemberID(ctx, "https://doi.org/10.1000/found", false)
	require.NoError(t, err)
	assert.Equal(t, "crossref.297", id)

	_, err = c.MemberID(ctx, "10.1000/missing", false)
	require.ErrorIs(t, err, domain.ErrNotFound)

	exists, err := c.Exists(ctx, "10.1000/missing")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = c.MemberID(ctx, "10.1000/broken", false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	var backendErr *domain.BackendError
	assert.ErrorAs(t, err, &backendErr)
}

func TestCrossrefClient_RetriesTransientFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"message":{"member":"78"}}`))
	}))
	t.Cleanup(srv.Close)

	c := external.NewCrossrefClient(fastConfig(srv.URL), external.Deps{})
	id, err := c.MemberID(context.Background(), "10.1016/j.x", false)
	require.NoError(t, err)
	assert.Equal(t, "crossref.78", id)
	assert.Equal(t, int32(2), calls.Load())
}

func TestORCIDClient_Person(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.orcid+json", r.Header.Get("Accept"))
		switch r.URL.Path {
		case "/0000-0002-1825-0097/person":
			_, _ = w.Write([]byte(`{"name":{"given-names":{"value":"Josiah"},"family-name":{"value":"Carberry"},"credit-name":null}}`))
		case "/0000-0003-1419-2405/person":
			_, _ = w.Write([]byte(`{"name":{"given-names":{"value":"Martin"},"family-name":{"value":"Fenner"},"credit-name":{"value":"M. Fenner"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c := external.NewORCIDClient(fastConfig(srv.URL), external.Deps{})
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		want    *domain.Researcher
		wantErr error
	}{
		{
			name: "joined given and family names",
			id:   "https://orcid.org/0000-0002-1825-0097",
			want: &domain.Researcher{UID: "0000-0002-1825-0097", Name: "Josiah Carberry", GivenNames: "Josiah", FamilyName: "Carberry"},
		},
		{
			name: "credit name wins",
			id:   "0000-0003-1419-2405",
			want: &domain.Researcher{UID: "0000-0003-1419-2405", Name: "M. Fenner", GivenNames: "Martin", FamilyName: "Fenner"},
		},
		{name: "unknown id", id: "0000-0000-0000-0000", wantErr: domain.ErrNotFound},
		{name: "malformed id", id: "https://orcid.org/nope", wantErr: domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Person(ctx, tt.id)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
