package contentsvc_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casbytes/lms-sub000/core"
	contentsvc "github.com/casbytes/lms-sub000/services/content"
)

func TestClient_Markdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/go/basics/intro.md":
			assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte("# Intro\n"))
		case "/broken.md":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	conf := core.NewTestConfig()
	conf.Content.BaseURL = srv.URL + "/"
	conf.Content.Token = "s3cret"
	client := contentsvc.NewClient(conf)
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
		notFnd  bool
	}{
		{name: "found", path: "go/basics/intro.md", want: "# Intro\n"},
		{name: "leading slash", path: "/go/basics/intro.md", want: "# Intro\n"},
		{name: "missing", path: "nope.md", wantErr: true, notFnd: true},
		{name: "forbidden", path: "broken.md", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := client.Markdown(ctx, tc.path)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, tc.notFnd, core.IsNotFound(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
