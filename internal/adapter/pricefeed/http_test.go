package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		path    string
		scaled  bool
		want    string
		wantErr bool
	}{
		{
			name: "Fixed point integer answer",
			body: `{"answer": 200000000000}`,
			path: "answer",
			want: "200000000000",
		},
		{
			name: "Nested string answer",
			body: `{"data": {"rounds": [{"answer": "99990000"}]}}`,
			path: "data.rounds.0.answer",
			want: "99990000",
		},
		{
			name:   "Scaled dollar price",
			body:   `{"usd": 2000.5}`,
			path:   "usd",
			scaled: true,
			want:   "200050000000",
		},
		{
			name:   "Scaled price truncates below one unit",
			body:   `{"usd": "0.123456789"}`,
			path:   "usd",
			scaled: true,
			want:   "12345678",
		},
		{
			name:    "Missing path",
			body:    `{"usd": 1}`,
			path:    "eur",
			wantErr: true,
		},
		{
			name:    "Non numeric value",
			body:    `{"usd": {"value": 1}}`,
			path:    "usd",
			wantErr: true,
		},
		{
			name:    "Unparseable string",
			body:    `{"usd": "n/a"}`,
			path:    "usd",
			wantErr: true,
		},
		{
			name:    "Invalid JSON",
			body:    `{"usd": `,
			path:    "usd",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice([]byte(tt.body), tt.path, tt.scaled)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestHTTPSource_LatestPrice(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{name: "Success", status: http.StatusOK, body: `{"price": {"answer": 150000000}}`, want: "150000000"},
		{name: "Server error", status: http.StatusInternalServerError, body: `{}`, wantErr: true},
		{name: "Garbage body", status: http.StatusOK, body: `<html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			source := NewHTTPSource(srv.Client(), srv.URL, "price.answer", false)
			got, err := source.LatestPrice(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestHTTPSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPSource(nil, url, "price", false).LatestPrice(context.Background())
	assert.Error(t, err)
}
