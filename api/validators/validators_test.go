package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
)

func TestParseQueryInt(t *testing.T) {
	cases := []struct {
		name    string
		query   string
		want    int
		wantErr bool
	}{
		{name: "default", query: "", want: 50},
		{name: "value", query: "limit=10", want: 10},
		{name: "not numeric", query: "limit=ten", wantErr: true},
		{name: "below range", query: "limit=0", wantErr: true},
		{name: "above range", query: "limit=501", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
			got, err := ParseQueryInt(r, "limit", 50, 1, 500)
			if tc.wantErr {
				require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func withParam(key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestParsePathID(t *testing.T) {
	id, err := ParsePathID(withParam("saleID", "42"), "saleID")
	require.NoError(t, err)
	require.Equal(t, uint64(42), id)

	for _, raw := range []string{"", "0", "-1", "abc"} {
		_, err := ParsePathID(withParam("saleID", raw), "saleID")
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "input %q", raw)
	}
}

func TestStructReportsFieldNames(t *testing.T) {
	type query struct {
		Period string `query:"period" validate:"required,oneof=daily monthly yearly"`
		Top    int    `query:"top" validate:"min=1,max=100"`
	}

	err := Struct(&query{Period: "weekly", Top: 0})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]string)
	require.Equal(t, "must be one of daily monthly yearly", details["period"])
	require.Equal(t, "must be at least 1", details["top"])

	require.NoError(t, Struct(&query{Period: "daily", Top: 10}))
}
