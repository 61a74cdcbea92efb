package webauthz

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidatePaths(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/api/contact/1234", []string{"/api/contact/1234", "/api/contact", "/api", "/"}},
		{"/api", []string{"/api", "/"}},
		{"/", []string{"/"}},
		{"", []string{"/"}},
		{"/api/contact/", []string{"/api/contact", "/api", "/"}},
		{"api/contact", []string{"/api/contact", "/api", "/"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, candidatePaths(tt.path))
		})
	}
}

func TestCandidatePaths_OneEntryPerSegmentPlusRoot(t *testing.T) {
	segments := []string{"a", "b", "c", "d", "e"}
	for n := 1; n <= len(segments); n++ {
		path := "/" + strings.Join(segments[:n], "/")
		got := candidatePaths(path)

		require.Len(t, got, n+1, "path %s", path)
		assert.Equal(t, path, got[0])
		assert.Equal(t, "/", got[len(got)-1])
		for i := 1; i < len(got); i++ {
			assert.True(t, len(got[i]) < len(got[i-1]), "entries must get shorter: %v", got)
			assert.True(t, strings.HasPrefix(got[i-1], got[i]), "entries must be prefixes: %v", got)
		}
	}
}

func TestSplitResourceURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantOrigin string
		wantPath   string
		wantErr    bool
	}{
		{uri: "https://api.example/api/contact/1234", wantOrigin: "https://api.example", wantPath: "/api/contact/1234"},
		{uri: "https://API.Example:443/x?q=1#frag", wantOrigin: "https://api.example", wantPath: "/x"},
		{uri: "http://api.example:80", wantOrigin: "http://api.example", wantPath: "/"},
		{uri: "http://localhost:8080/a/", wantOrigin: "http://localhost:8080", wantPath: "/a"},
		{uri: "https://[::1]:8443/a", wantOrigin: "https://[::1]:8443", wantPath: "/a"},
		{uri: "https://api.example/a%20b", wantOrigin: "https://api.example", wantPath: "/a%20b"},
		{uri: "", wantErr: true},
		{uri: "/relative/path", wantErr: true},
		{uri: "ftp://files.example/a", wantErr: true},
		{uri: "https://bad host/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			origin, path, err := splitResourceURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOrigin, origin)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestExpired_IsStrict(t *testing.T) {
	deadline := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	assert.False(t, expired(deadline.Add(-time.Second), &deadline))
	assert.False(t, expired(deadline, &deadline), "a token is still valid at the exact expiry instant")
	assert.True(t, expired(deadline.Add(time.Nanosecond), &deadline))
	assert.False(t, expired(deadline.Add(100*365*24*time.Hour), nil), "no expiry means never expired")
}

func TestNotAfter(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	longest := time.Duration(maxLifetimeSeconds) * time.Second

	tests := []struct {
		name       string
		maxSeconds *int64
		want       *time.Duration // offset from now; nil means no expiry
	}{
		{name: "absent", maxSeconds: nil, want: nil},
		{name: "one hour", maxSeconds: int64Ptr(3600), want: durationPtr(time.Hour)},
		{name: "zero", maxSeconds: int64Ptr(0), want: durationPtr(0)},
		{name: "negative expires now", maxSeconds: int64Ptr(-30), want: durationPtr(0)},
		{name: "longest representable", maxSeconds: int64Ptr(maxLifetimeSeconds), want: durationPtr(longest)},
		{name: "beyond time.Duration", maxSeconds: int64Ptr(10_000_000_000), want: nil},
		{name: "max int64", maxSeconds: int64Ptr(math.MaxInt64), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := notAfter(now, tt.maxSeconds)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, now.Add(*tt.want), *got)
			assert.False(t, got.Before(now), "expiry must never precede issue time")
		})
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
