package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"CreatorStudio-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(handler http.Handler) (*GatewayClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewGatewayClient(srv.URL, 5*time.Second), srv
}

func TestGatewayFetchProject(t *testing.T) {
	p := models.NewProject("p1", "远端项目", models.ProjectInputs{Topic: "t"})
	g, srv := newTestGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/projects/p1", r.URL.Path)
		json.NewEncoder(w).Encode(p)
	}))
	defer srv.Close()

	got, err := g.FetchProject(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "远端项目", got.Title)
	assert.Equal(t, p.UpdatedAt, got.UpdatedAt)
}

func TestGatewayNotFound(t *testing.T) {
	g, srv := newTestGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := g.FetchProject(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGatewayErrorBody(t *testing.T) {
	g, srv := newTestGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "db exploded"})
	}))
	defer srv.Close()

	err := g.PushProject(context.Background(), models.NewProject("p1", "x", models.ProjectInputs{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "db exploded")
}

func TestGatewayPushProject(t *testing.T) {
	var received models.Project
	g, srv := newTestGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/projects/p1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := models.NewProject("p1", "待推送", models.ProjectInputs{})
	require.NoError(t, g.PushProject(context.Background(), p))
	assert.Equal(t, "待推送", received.Title)
}

func TestGatewayPutImage(t *testing.T) {
	g, srv := newTestGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/images/projects/p1/frames/f1.png", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, []byte{1, 2, 3}, body)
		json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example.com/f1.png"})
	}))
	defer srv.Close()

	url, err := g.PutImage(context.Background(), "projects/p1/frames/f1.png", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/f1.png", url)
}

func TestGatewayPutImageMissingURL(t *testing.T) {
	g, srv := newTestGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	_, err := g.PutImage(context.Background(), "k", []byte{1})
	assert.Error(t, err)
}

func TestGatewayListAndPullEndpoints(t *testing.T) {
	g, srv := newTestGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/projects":
			json.NewEncoder(w).Encode([]*models.Project{
				models.NewProject("p1", "项目一", models.ProjectInputs{}),
				models.NewProject("p2", "项目二", models.ProjectInputs{}),
			})
		case "/prompts":
			json.NewEncoder(w).Encode(map[string]string{"script": "远端模板"})
		case "/inspirations":
			json.NewEncoder(w).Encode([]models.Inspiration{{ID: "i1", Content: "远端灵感"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	projects, err := g.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "项目二", projects[1].Title)

	prompts, err := g.FetchPrompts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "远端模板", prompts["script"])

	inspirations, err := g.FetchInspirations(context.Background())
	require.NoError(t, err)
	require.Len(t, inspirations, 1)
	assert.Equal(t, "远端灵感", inspirations[0].Content)
}

func TestGatewayGetImage(t *testing.T) {
	g, srv := newTestGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path != "/images/projects/p1/frames/f1.png" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	defer srv.Close()

	data, err := g.GetImage(context.Background(), "projects/p1/frames/f1.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, data)

	_, err = g.GetImage(context.Background(), "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGatewaySnapshotRoundTrip(t *testing.T) {
	var pushed Snapshot
	g, srv := newTestGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sync", r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&pushed))
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			json.NewEncoder(w).Encode(pushed)
		}
	}))
	defer srv.Close()

	snap := &Snapshot{
		Projects:     []models.Project{*models.NewProject("p1", "快照项目", models.ProjectInputs{})},
		Inspirations: []models.Inspiration{{ID: "i1", Content: "灵感", CreatedAt: 1}},
		Prompts:      map[string]string{"script": "自定义模板"},
	}
	require.NoError(t, g.PushSnapshot(context.Background(), snap))

	got, err := g.FetchSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Projects, 1)
	assert.Equal(t, "快照项目", got.Projects[0].Title)
	assert.Equal(t, "自定义模板", got.Prompts["script"])
}
