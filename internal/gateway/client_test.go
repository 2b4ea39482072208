package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/paladium/internal/models"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

// recorder captures the last request seen by the fake backend.
type recorder struct {
	mu     sync.Mutex
	method string
	path   string
	query  string
	auth   string
	body   []byte
}

func (r *recorder) capture(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.method = req.Method
	r.path = req.URL.EscapedPath()
	r.query = req.URL.RawQuery
	r.auth = req.Header.Get("Authorization")
	r.body, _ = io.ReadAll(req.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setupTestClient(t *testing.T, handler func(rec *recorder) http.HandlerFunc, opts ...Option) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	server := httptest.NewServer(handler(rec))
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL}, opts...), rec
}

func TestListGroupsNormalizesIDs(t *testing.T) {
	client, rec := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rec.capture(r)
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": 1, "name": "Red", "members": []map[string]any{{"id": 7, "name": "Alice", "email": "a@x.io"}}},
				{"id": "g-2", "name": "Blue", "members": []any{}},
			})
		}
	})

	groups, err := client.ListGroups(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/groups/", rec.path)
	require.Len(t, groups, 2)
	assert.Equal(t, "1", groups[0].ID)
	assert.Equal(t, []models.Person{{ID: "7", Name: "Alice", Email: "a@x.io"}}, groups[0].Members)
	assert.Equal(t, "g-2", groups[1].ID)
	assert.Empty(t, groups[1].Members)
}

func TestCreateGroupSendsNameAsQuery(t *testing.T) {
	client, rec := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rec.capture(r)
			writeJSON(w, http.StatusOK, map[string]any{"id": 3, "name": r.URL.Query().Get("name")})
		}
	})

	group, err := client.CreateGroup(context.Background(), "Red team")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/groups/", rec.path)
	assert.Equal(t, "name=Red+team", rec.query)
	assert.Equal(t, models.Group{ID: "3", Name: "Red team", Members: []models.Person{}}, group)
}

func TestAddMemberSendsNumericID(t *testing.T) {
	client, rec := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rec.capture(r)
			w.WriteHeader(http.StatusOK)
		}
	})

	require.NoError(t, client.AddMember(context.Background(), "5", "42"))

	assert.Equal(t, "/groups/5/members", rec.path)
	assert.JSONEq(t, `{"annotator_id": 42}`, string(rec.body))
}

func TestAddMemberSendsStringID(t *testing.T) {
	client, rec := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rec.capture(r)
			w.WriteHeader(http.StatusOK)
		}
	})

	require.NoError(t, client.AddMember(context.Background(), "g", "p-1"))
	assert.JSONEq(t, `{"annotator_id": "p-1"}`, string(rec.body))
}

func TestCreatePersonConflict(t *testing.T) {
	client, _ := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusConflict, map[string]string{"detail": "Email already exists"})
		}
	})

	_, err := client.CreatePerson(context.Background(), "Bob", "bob@x.io", "secret")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "Email already exists", err.Error())
}

func TestRenameTagEscapesPathAndCarriesDetail(t *testing.T) {
	client, rec := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rec.capture(r)
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "New tag name is the same as the old one"})
		}
	})

	err := client.RenameTag(context.Background(), "9", "big cat", "cat")
	require.Error(t, err)

	assert.Equal(t, http.MethodPatch, rec.method)
	assert.Equal(t, "/images/9/tags/big%20cat", rec.path)
	assert.JSONEq(t, `{"new_tag_name": "cat"}`, string(rec.body))
	assert.True(t, errors.Is(err, ErrBadRequest))
	assert.Equal(t, "New tag name is the same as the old one", Detail(err, "Failed to rename tag"))
}

func TestValidationErrorDetailList(t *testing.T) {
	client, _ := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"detail": []map[string]string{{"msg": "field required"}, {"msg": "value is not a valid email"}},
			})
		}
	})

	_, err := client.CreatePerson(context.Background(), "", "", "")
	require.Error(t, err)
	assert.Equal(t, "field required; value is not a valid email", err.Error())
}

func TestListImagesResolvesURLs(t *testing.T) {
	client, _ := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []map[string]any{{
				"id":     1,
				"name":   "cat.jpg",
				"url":    "/uploads/abc.jpg",
				"groups": []map[string]any{{"id": 2, "name": "Red"}, {"id": 2, "name": "Red"}, {"id": 3, "name": "Blue"}},
				"tags":   []map[string]any{{"id": 10, "name": "cat", "count": 3, "percentage": 75}},
			}})
		}
	})

	images, err := client.ListImages(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 1)

	img := images[0]
	assert.Equal(t, client.BaseURL()+"/uploads/abc.jpg", img.URL)
	assert.Equal(t, "cat.jpg", img.Alt)
	assert.Equal(t, []string{"2", "3"}, img.GroupIDs)
	assert.Equal(t, []models.Tag{{Name: "cat", Percentage: 75, Count: 3}}, img.Tags)
}

func TestUploadImageMultipart(t *testing.T) {
	client, _ := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			file, header, err := r.FormFile("file")
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
				return
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			writeJSON(w, http.StatusOK, map[string]any{
				"ok": true, "id": len(data), "name": header.Filename, "url": "/uploads/x.png",
			})
		}
	})

	img, err := client.UploadImage(context.Background(), "x.png", strings.NewReader("12345"))
	require.NoError(t, err)
	assert.Equal(t, "5", img.ID)
	assert.Equal(t, "x.png", img.Alt)
	assert.Equal(t, client.BaseURL()+"/uploads/x.png", img.URL)
	assert.Empty(t, img.GroupIDs)
}

func TestBearerTokenFromSource(t *testing.T) {
	client, rec := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rec.capture(r)
			writeJSON(w, http.StatusOK, []any{})
		}
	}, WithTokenSource(staticToken("tok-1")))

	_, err := client.ListPeople(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", rec.auth)
}

func TestMeUsesExplicitToken(t *testing.T) {
	client, rec := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rec.capture(r)
			writeJSON(w, http.StatusOK, map[string]any{"id": 4, "email": "admin@x.io", "type": "admin"})
		}
	}, WithTokenSource(staticToken("other")))

	user, err := client.Me(context.Background(), "stored")
	require.NoError(t, err)
	assert.Equal(t, "Bearer stored", rec.auth)
	assert.Equal(t, models.User{ID: "4", Email: "admin@x.io", Type: models.UserTypeAdmin}, user)
}

func TestUnauthorizedHandler(t *testing.T) {
	client, _ := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid or expired token"})
		}
	})

	called := 0
	client.OnUnauthorized(func() { called++ })

	_, err := client.ListGroups(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, 1, called)
}

func TestDeleteTagReturnsMessage(t *testing.T) {
	client, rec := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rec.capture(r)
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Tag 'dog' removed from 2 annotation(s)"})
		}
	})

	msg, err := client.DeleteTag(context.Background(), "1", "dog")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/images/1/tags/dog", rec.path)
	assert.Equal(t, "Tag 'dog' removed from 2 annotation(s)", msg)
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	client, _ := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete {
				writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Group not found"})
				return
			}
			writeJSON(w, http.StatusOK, []any{})
		}
	}, WithMetrics(metrics))

	_, _ = client.ListGroups(context.Background())
	_, _ = client.ListGroups(context.Background())
	err := client.DeleteGroup(context.Background(), "1")
	require.True(t, errors.Is(err, ErrNotFound))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.requests.WithLabelValues("list_groups", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("delete_group", "404")))
}

func TestTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := New(Config{BaseURL: url})
	_, err := client.ListPeople(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "failed to list people")
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		rel  string
		want string
	}{
		{name: "relative with slash", base: "http://api", rel: "/uploads/a.jpg", want: "http://api/uploads/a.jpg"},
		{name: "base with trailing slash", base: "http://api/", rel: "/uploads/a.jpg", want: "http://api/uploads/a.jpg"},
		{name: "relative without slash", base: "http://api", rel: "uploads/a.jpg", want: "http://api/uploads/a.jpg"},
		{name: "absolute untouched", base: "http://api", rel: "https://cdn/a.jpg", want: "https://cdn/a.jpg"},
		{name: "empty", base: "http://api", rel: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveURL(tt.base, tt.rel))
		})
	}
}

func TestWrongPasswordKeepsSession(t *testing.T) {
	client, _ := setupTestClient(t, func(rec *recorder) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Current password is incorrect"})
		}
	})

	called := 0
	client.OnUnauthorized(func() { called++ })

	err := client.ChangePassword(context.Background(), "old", "new")
	require.Error(t, err)
	assert.Equal(t, "Current password is incorrect", Detail(err, ""))

	_, err = client.Login(context.Background(), models.UserTypeAdmin, "a@example.com", "pw")
	require.Error(t, err)

	assert.Equal(t, 0, called)
}
