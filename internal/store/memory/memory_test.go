package memory

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/model"
)

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	if err != nil {
		t.Fatalf("uuid.NewV4: %v", err)
	}
	return id
}

func TestSaveUserIdempotentUpsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	id := mustUUID(t)
	u := &model.User{ID: id, Email: "User@Example.com"}
	if err := s.SaveUser(ctx, u); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}

	u2 := &model.User{ID: id, Email: "user@example.com", SecurityStamp: "v2"}
	if err := s.SaveUser(ctx, u2); err != nil {
		t.Fatalf("second SaveUser: %v", err)
	}

	got, err := s.GetUser(ctx, id)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.SecurityStamp != "v2" {
		t.Fatalf("expected upsert to replace in place, got stamp %q", got.SecurityStamp)
	}

	byEmail, err := s.GetUserByEmail(ctx, "USER@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if byEmail.ID != id {
		t.Fatalf("expected case-insensitive email lookup to find the user")
	}
}

// TestForeignKeyViolationOnOrphanedSave covers spec 4.3: saving a child row
// whose parent was concurrently deleted must return ErrForeignKeyViolation,
// never silently resurrect the parent.
func TestForeignKeyViolationOnOrphanedSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	userID := mustUUID(t)
	user := &model.User{ID: userID, Email: "owner@example.com"}
	if err := s.SaveUser(ctx, user); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}

	folder := &model.Folder{ID: mustUUID(t), UserID: userID, Name: model.EncryptedBlob("enc")}
	if err := s.SaveFolder(ctx, folder); err != nil {
		t.Fatalf("SaveFolder: %v", err)
	}

	if err := s.DeleteUser(ctx, userID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	orphan := &model.Folder{ID: mustUUID(t), UserID: userID, Name: model.EncryptedBlob("enc2")}
	err := s.SaveFolder(ctx, orphan)
	if err == nil {
		t.Fatalf("expected ForeignKeyViolation when saving a folder for a deleted user")
	}
	if errs.KindOf(err) != errs.KindConflict {
		t.Fatalf("expected KindConflict, got %v", errs.KindOf(err))
	}
}

func TestDeleteCollectionCascadesGrants(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	org := &model.Organization{ID: mustUUID(t), Name: "Acme"}
	if err := s.SaveOrganization(ctx, org); err != nil {
		t.Fatalf("SaveOrganization: %v", err)
	}
	user := &model.User{ID: mustUUID(t), Email: "member@example.com"}
	if err := s.SaveUser(ctx, user); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	coll := &model.Collection{ID: mustUUID(t), OrganizationID: org.ID, Name: "Engineering"}
	if err := s.SaveCollection(ctx, coll); err != nil {
		t.Fatalf("SaveCollection: %v", err)
	}
	grant := &model.CollectionUser{CollectionID: coll.ID, UserID: user.ID}
	if err := s.SaveCollectionUser(ctx, grant); err != nil {
		t.Fatalf("SaveCollectionUser: %v", err)
	}

	if err := s.DeleteCollection(ctx, coll.ID); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}

	grants, err := s.ListCollectionUsersByCollection(ctx, coll.ID)
	if err != nil {
		t.Fatalf("ListCollectionUsersByCollection: %v", err)
	}
	if len(grants) != 0 {
		t.Fatalf("expected collection-user grants to cascade-delete, found %d", len(grants))
	}
}

func TestBackupProducesNonEmptySnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()
	if err := s.SaveUser(ctx, &model.User{ID: mustUUID(t), Email: "a@example.com"}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	data, err := s.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty backup payload")
	}
}
