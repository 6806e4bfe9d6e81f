package accesscontrol

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	l, err := Parse([]string{"127.0.0.1", " ", "192.168.1.0/24", "::1"})
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())

	_, err = Parse([]string{"not-an-ip"})
	assert.Error(t, err)

	_, err = Parse([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}

func TestAllows(t *testing.T) {
	l, err := Parse([]string{"127.0.0.1", "192.168.1.0/24", "::1"})
	require.NoError(t, err)

	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1", true},
		{"127.0.0.2", false},
		{"192.168.1.77", true},
		{"192.168.2.1", false},
		{"::1", true},
		{"::ffff:127.0.0.1", true},
		{"10.0.0.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Allows(netip.MustParseAddr(tt.addr)))
		})
	}
}

func TestEmptyListAllowsAll(t *testing.T) {
	var nilList *List
	assert.True(t, nilList.AllowsRemote("garbage"))

	l, err := Parse(nil)
	require.NoError(t, err)
	assert.True(t, l.Allows(netip.MustParseAddr("8.8.8.8")))
	assert.True(t, l.AllowsRemote("8.8.8.8:5353"))
}

func TestAllowsRemote(t *testing.T) {
	l, err := Parse([]string{"127.0.0.1", "::1"})
	require.NoError(t, err)

	assert.True(t, l.AllowsRemote("127.0.0.1:51234"))
	assert.True(t, l.AllowsRemote("[::1]:51234"))
	assert.True(t, l.AllowsRemote("127.0.0.1"))
	assert.False(t, l.AllowsRemote("10.1.1.1:80"))
	assert.False(t, l.AllowsRemote("garbage"))
}

func TestMiddleware(t *testing.T) {
	l, err := Parse([]string{"127.0.0.1"})
	require.NoError(t, err)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req.RemoteAddr = "10.0.0.5:40000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
