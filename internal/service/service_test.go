package service

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmynk/paladium/internal/auth"
	"github.com/mmynk/paladium/internal/gateway"
	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/storage/sqlite"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type staticToken string

func (t staticToken) Token() string { return string(t) }

type testServer struct {
	url       string
	uploadDir string
}

// client returns a gateway client that authenticates with token.
func (s *testServer) client(token string) *gateway.Client {
	return gateway.New(gateway.Config{BaseURL: s.url, Timeout: 5 * time.Second},
		gateway.WithTokenSource(staticToken(token)))
}

// setupTestServer starts the full backend on a temporary database and
// returns it with an admin client.
func setupTestServer(t *testing.T) (*testServer, *gateway.Client, func()) {
	t.Helper()

	dir := t.TempDir()
	store, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	uploadDir := filepath.Join(dir, "uploads")
	handler := NewHandler(store, auth.NewPasswordAuthenticator(store), auth.NewJWTManager("test-secret", time.Hour), uploadDir)
	server := httptest.NewServer(handler)

	ts := &testServer{url: server.URL, uploadDir: uploadDir}
	token, err := ts.client("").Register(context.Background(), models.UserTypeAdmin, "admin@example.com", "admin-pass", "")
	if err != nil {
		server.Close()
		store.Close()
		t.Fatalf("failed to register admin: %v", err)
	}

	cleanup := func() {
		server.Close()
		store.Close()
	}
	return ts, ts.client(token), cleanup
}

// createAnnotator creates an annotator through the admin API and logs in as
// them.
func createAnnotator(t *testing.T, ts *testServer, admin *gateway.Client, name string) (models.Person, *gateway.Client) {
	t.Helper()
	ctx := context.Background()

	email := strings.ToLower(name) + "@example.com"
	person, err := admin.CreatePerson(ctx, name, email, "secret")
	if err != nil {
		t.Fatalf("CreatePerson(%s) failed: %v", name, err)
	}
	token, err := ts.client("").Login(ctx, models.UserTypeAnnotator, email, "secret")
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", name, err)
	}
	return person, ts.client(token)
}

func wantDetail(t *testing.T, err error, sentinel error, detail string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", detail)
	}
	if sentinel != nil && !errors.Is(err, sentinel) {
		t.Errorf("expected %v, got %v", sentinel, err)
	}
	if got := gateway.Detail(err, ""); got != detail {
		t.Errorf("detail: expected %q, got %q", detail, got)
	}
}

func TestAuth(t *testing.T) {
	ts, _, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	anon := ts.client("")
	_, err := anon.Me(ctx, "")
	wantDetail(t, err, gateway.ErrUnauthorized, "Not authenticated")

	_, err = anon.Login(ctx, models.UserTypeAdmin, "admin@example.com", "wrong")
	wantDetail(t, err, gateway.ErrUnauthorized, "Invalid credentials")

	_, err = anon.Register(ctx, models.UserTypeAdmin, "admin@example.com", "other", "")
	wantDetail(t, err, gateway.ErrConflict, "Email already exists")

	token, err := anon.Login(ctx, models.UserTypeAdmin, "admin@example.com", "admin-pass")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	user, err := anon.Me(ctx, token)
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if user.Email != "admin@example.com" || user.Type != models.UserTypeAdmin {
		t.Errorf("unexpected user: %+v", user)
	}

	// The same email may exist once per user type.
	if _, err := anon.Register(ctx, models.UserTypeAnnotator, "admin@example.com", "pw", "Admin Too"); err != nil {
		t.Errorf("Register annotator with admin email failed: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	ts, admin, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	_, annotator := createAnnotator(t, ts, admin, "Alice")

	err := annotator.ChangePassword(ctx, "wrong", "new-secret")
	wantDetail(t, err, gateway.ErrUnauthorized, "Current password is incorrect")

	if err := annotator.ChangePassword(ctx, "secret", "new-secret"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := ts.client("").Login(ctx, models.UserTypeAnnotator, "alice@example.com", "new-secret"); err != nil {
		t.Errorf("Login with new password failed: %v", err)
	}

	err = admin.ChangePassword(ctx, "admin-pass", "x")
	wantDetail(t, err, gateway.ErrForbidden, "Annotator access required")
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ts, admin, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	_, annotator := createAnnotator(t, ts, admin, "Alice")

	_, err := annotator.ListPeople(ctx)
	wantDetail(t, err, gateway.ErrForbidden, "Admin access required")

	_, err = ts.client("").ListGroups(ctx)
	wantDetail(t, err, gateway.ErrUnauthorized, "Not authenticated")

	_, err = ts.client("garbage").ListImages(ctx)
	wantDetail(t, err, gateway.ErrUnauthorized, "Invalid or expired token")
}

func TestCreatePerson(t *testing.T) {
	_, admin, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	alice, err := admin.CreatePerson(ctx, "Alice", "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}
	if alice.ID == "" || alice.Name != "Alice" || alice.Email != "alice@example.com" {
		t.Errorf("unexpected person: %+v", alice)
	}

	_, err = admin.CreatePerson(ctx, "Alice 2", "alice@example.com", "secret")
	wantDetail(t, err, gateway.ErrConflict, "Email already exists")

	_, err = admin.CreatePerson(ctx, "Bob", "not-an-email", "secret")
	if !errors.Is(err, gateway.ErrBadRequest) {
		t.Errorf("expected validation error, got %v", err)
	}

	people, err := admin.ListPeople(ctx)
	if err != nil {
		t.Fatalf("ListPeople failed: %v", err)
	}
	if len(people) != 1 || people[0].ID != alice.ID {
		t.Errorf("expected only Alice, got %+v", people)
	}
}

func TestGroupMembership(t *testing.T) {
	ts, admin, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	alice, _ := createAnnotator(t, ts, admin, "Alice")

	red, err := admin.CreateGroup(ctx, "Red")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	blue, err := admin.CreateGroup(ctx, "Blue")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if len(red.Members) != 0 {
		t.Errorf("expected empty group, got %+v", red.Members)
	}

	_, err = admin.CreateGroup(ctx, "Red")
	wantDetail(t, err, gateway.ErrBadRequest, "Group already exists")

	if err := admin.AddMember(ctx, red.ID, alice.ID); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	err = admin.AddMember(ctx, red.ID, alice.ID)
	wantDetail(t, err, gateway.ErrBadRequest, "Annotator is already in this group")
	err = admin.AddMember(ctx, blue.ID, alice.ID)
	wantDetail(t, err, gateway.ErrBadRequest, "Annotator is already in group 'Red'")

	err = admin.AddMember(ctx, red.ID, "missing")
	wantDetail(t, err, gateway.ErrNotFound, "Annotator not found")
	err = admin.AddMember(ctx, "missing", alice.ID)
	wantDetail(t, err, gateway.ErrNotFound, "Group not found")

	groups, err := admin.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	for _, g := range groups {
		if g.ID == red.ID && !g.HasMember(alice.ID) {
			t.Errorf("expected Alice in Red, got %+v", g.Members)
		}
	}

	err = admin.RemoveMember(ctx, blue.ID, alice.ID)
	wantDetail(t, err, gateway.ErrBadRequest, "Annotator is not in this group")
	if err := admin.RemoveMember(ctx, red.ID, alice.ID); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if err := admin.AddMember(ctx, blue.ID, alice.ID); err != nil {
		t.Fatalf("AddMember after removal failed: %v", err)
	}

	if err := admin.DeleteGroup(ctx, blue.ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}
	err = admin.DeleteGroup(ctx, blue.ID)
	wantDetail(t, err, gateway.ErrNotFound, "Group not found")

	// Deleting the group frees its members.
	if err := admin.AddMember(ctx, red.ID, alice.ID); err != nil {
		t.Errorf("AddMember after group deletion failed: %v", err)
	}
}

func TestCreateGroupRequiresName(t *testing.T) {
	_, admin, cleanup := setupTestServer(t)
	defer cleanup()

	_, err := admin.CreateGroup(context.Background(), "  ")
	if !errors.Is(err, gateway.ErrBadRequest) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var apiErr *gateway.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestImageLifecycle(t *testing.T) {
	ts, admin, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	alice, aliceClient := createAnnotator(t, ts, admin, "Alice")
	bob, bobClient := createAnnotator(t, ts, admin, "Bob")
	group, err := admin.CreateGroup(ctx, "Red")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	for _, p := range []models.Person{alice, bob} {
		if err := admin.AddMember(ctx, group.ID, p.ID); err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}
	}

	image, err := admin.UploadImage(ctx, "cat.png", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("UploadImage failed: %v", err)
	}
	if image.ID == "" || image.Alt != "cat.png" {
		t.Errorf("unexpected image: %+v", image)
	}
	if !strings.HasPrefix(image.URL, ts.url+"/uploads/") || !strings.HasSuffix(image.URL, ".png") {
		t.Errorf("unexpected url: %s", image.URL)
	}
	entries, err := os.ReadDir(ts.uploadDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one uploaded file, got %v (%v)", entries, err)
	}

	_, err = admin.UploadImage(ctx, "notes.txt", strings.NewReader("just some text"))
	wantDetail(t, err, gateway.ErrBadRequest, "Only image files are allowed")

	// Not in any group yet.
	visible, err := aliceClient.AnnotatorImages(ctx, alice.ID)
	if err != nil {
		t.Fatalf("AnnotatorImages failed: %v", err)
	}
	if len(visible) != 0 {
		t.Errorf("expected no images before assignment, got %d", len(visible))
	}

	if err := admin.AddImageToGroup(ctx, image.ID, group.ID); err != nil {
		t.Fatalf("AddImageToGroup failed: %v", err)
	}
	if err := admin.AddImageToGroup(ctx, image.ID, group.ID); err != nil {
		t.Errorf("AddImageToGroup is not idempotent: %v", err)
	}
	err = admin.AddImageToGroup(ctx, image.ID, "missing")
	wantDetail(t, err, gateway.ErrNotFound, "Group not found")

	if err := aliceClient.SubmitAnnotation(ctx, alice.ID, image.ID, []string{" Cat ", "fluffy"}); err != nil {
		t.Fatalf("SubmitAnnotation failed: %v", err)
	}
	if err := bobClient.SubmitAnnotation(ctx, bob.ID, image.ID, []string{"cat"}); err != nil {
		t.Fatalf("SubmitAnnotation failed: %v", err)
	}
	err = bobClient.SubmitAnnotation(ctx, alice.ID, image.ID, []string{"dog"})
	if !errors.Is(err, gateway.ErrForbidden) {
		t.Errorf("expected forbidden when annotating for someone else, got %v", err)
	}
	err = aliceClient.SubmitAnnotation(ctx, alice.ID, "missing", []string{"cat"})
	wantDetail(t, err, gateway.ErrNotFound, "Image not found")

	visible, err = aliceClient.AnnotatorImages(ctx, alice.ID)
	if err != nil {
		t.Fatalf("AnnotatorImages failed: %v", err)
	}
	if len(visible) != 1 || !visible[0].Classified {
		t.Fatalf("expected one classified image, got %+v", visible)
	}
	if strings.Join(visible[0].Tags, ",") != "cat,fluffy" {
		t.Errorf("tags: expected cat,fluffy, got %v", visible[0].Tags)
	}

	stats, err := aliceClient.AnnotatorStats(ctx, alice.ID)
	if err != nil {
		t.Fatalf("AnnotatorStats failed: %v", err)
	}
	if stats.Total != 1 || stats.Classified != 1 || stats.Remaining != 0 || stats.Percentage != 100 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	images, err := admin.ListImages(ctx)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(images))
	}
	got := images[0]
	if got.TotalAnnotators != 2 || !got.HasConflict {
		t.Errorf("expected 2 annotators with a conflict, got %+v", got)
	}
	if !got.InGroup(group.ID) {
		t.Errorf("expected image in group %s, got %v", group.ID, got.GroupIDs)
	}
	if len(got.Tags) != 2 || got.Tags[0].Name != "cat" || got.Tags[0].Percentage != 100 || got.Tags[1].Percentage != 50 {
		t.Errorf("unexpected tags: %+v", got.Tags)
	}

	if err := admin.RenameTag(ctx, image.ID, "fluffy", "cat"); err != nil {
		t.Fatalf("RenameTag failed: %v", err)
	}
	err = admin.RenameTag(ctx, image.ID, "cat", " CAT ")
	wantDetail(t, err, gateway.ErrBadRequest, "New tag name is the same as the old one")
	err = admin.RenameTag(ctx, image.ID, "unknown", "dog")
	wantDetail(t, err, gateway.ErrNotFound, "Tag not found")

	msg, err := admin.DeleteTag(ctx, image.ID, "Cat")
	if err != nil {
		t.Fatalf("DeleteTag failed: %v", err)
	}
	if msg != "Tag 'Cat' removed from 2 annotation(s)" {
		t.Errorf("unexpected message: %q", msg)
	}

	images, err = admin.ListImages(ctx)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	if len(images[0].Tags) != 0 || images[0].HasConflict {
		t.Errorf("expected no tags after deletion, got %+v", images[0])
	}

	if err := admin.RemoveImageFromGroup(ctx, image.ID, group.ID); err != nil {
		t.Fatalf("RemoveImageFromGroup failed: %v", err)
	}
	if err := admin.DeleteImage(ctx, image.ID); err != nil {
		t.Fatalf("DeleteImage failed: %v", err)
	}
	err = admin.DeleteImage(ctx, image.ID)
	wantDetail(t, err, gateway.ErrNotFound, "Image not found")
	if entries, _ := os.ReadDir(ts.uploadDir); len(entries) != 0 {
		t.Errorf("expected upload to be removed, found %d file(s)", len(entries))
	}
}

func TestStatsWithoutGroup(t *testing.T) {
	ts, admin, cleanup := setupTestServer(t)
	defer cleanup()

	alice, aliceClient := createAnnotator(t, ts, admin, "Alice")
	stats, err := aliceClient.AnnotatorStats(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("AnnotatorStats failed: %v", err)
	}
	if stats.Total != 0 || stats.Percentage != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	// Admins may read anyone's stats.
	if _, err := admin.AnnotatorStats(context.Background(), alice.ID); err != nil {
		t.Errorf("admin AnnotatorStats failed: %v", err)
	}
	_, err = admin.AnnotatorStats(context.Background(), "missing")
	wantDetail(t, err, gateway.ErrNotFound, "Annotator not found")
}
