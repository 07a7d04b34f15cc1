package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruktech/income-tracker/internal/core"
	"github.com/ruktech/income-tracker/internal/crypto"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	cipher, err := crypto.New("test-secret")
	if err != nil {
		t.Fatalf("crypto.New: %v", err)
	}
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), cipher)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *SQLiteRepository, username, number string) Actor {
	t.Helper()
	id, err := repo.CreateUser(context.Background(), core.User{
		Username:       username,
		DisplayName:    username,
		Role:           core.RoleUser,
		WhatsAppNumber: number,
	}, "hash")
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return Actor{UserID: id, Role: core.RoleUser}
}

func seedIncome(t *testing.T, repo *SQLiteRepository, actor Actor, mutate func(*core.Income)) int64 {
	t.Helper()
	ctx := context.Background()
	catID, err := repo.CreateCategory(ctx, actor, core.Category{OwnerID: actor.UserID, Name: "Salary"})
	if err != nil {
		catID = mustFirstCategory(t, repo, actor)
	}
	inc := core.Income{
		OwnerID:     actor.UserID,
		CategoryID:  catID,
		Description: "Consulting retainer",
		Amount:      core.Money{Cents: 150000},
		Currency:    core.CurrencyUSD,
		DueDate:     core.NewDate(2024, 6, 15),
		Frequency:   core.FrequencyMonthly,
		Active:      true,
	}
	if mutate != nil {
		mutate(&inc)
	}
	id, err := repo.CreateIncome(ctx, actor, inc)
	if err != nil {
		t.Fatalf("CreateIncome: %v", err)
	}
	return id
}

func mustFirstCategory(t *testing.T, repo *SQLiteRepository, actor Actor) int64 {
	t.Helper()
	cats, err := repo.ListCategories(context.Background(), actor)
	if err != nil || len(cats) == 0 {
		t.Fatalf("no category for actor %d: %v", actor.UserID, err)
	}
	return cats[0].ID
}

func TestIncomeRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	actor := seedUser(t, repo, "alice", "+962791234567")
	id := seedIncome(t, repo, actor, nil)

	got, err := repo.GetIncome(context.Background(), actor, id)
	if err != nil {
		t.Fatalf("GetIncome: %v", err)
	}
	if got.Description != "Consulting retainer" {
		t.Errorf("description = %q", got.Description)
	}
	if got.Amount.Cents != 150000 {
		t.Errorf("amount = %d cents, want 150000", got.Amount.Cents)
	}
	if got.CategoryName != "Salary" {
		t.Errorf("category name = %q", got.CategoryName)
	}
	if got.Frequency != core.FrequencyMonthly {
		t.Errorf("frequency = %q", got.Frequency)
	}
}

func TestUserIsolation(t *testing.T) {
	repo := newTestRepo(t)
	alice := seedUser(t, repo, "alice", "")
	bob := seedUser(t, repo, "bob", "")
	ctx := context.Background()

	id := seedIncome(t, repo, alice, nil)

	// Foreign reads come back as not-found, never the record.
	if _, err := repo.GetIncome(ctx, bob, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign GetIncome error = %v, want ErrNotFound", err)
	}
	if err := repo.SoftDeleteIncome(ctx, bob, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign SoftDeleteIncome error = %v, want ErrNotFound", err)
	}

	// A superuser sees everything.
	super := Actor{UserID: bob.UserID, Role: core.RoleSuperuser}
	if _, err := repo.GetIncome(ctx, super, id); err != nil {
		t.Errorf("superuser GetIncome error = %v", err)
	}

	// Listings stay scoped.
	incomes, err := repo.ListIncomes(ctx, bob, IncomeFilter{})
	if err != nil {
		t.Fatalf("ListIncomes: %v", err)
	}
	if len(incomes) != 0 {
		t.Errorf("bob sees %d foreign incomes", len(incomes))
	}
}

func TestSoftDeleteExclusion(t *testing.T) {
	repo := newTestRepo(t)
	actor := seedUser(t, repo, "alice", "+962791234567")
	ctx := context.Background()

	id := seedIncome(t, repo, actor, nil)
	if err := repo.SoftDeleteIncome(ctx, actor, id); err != nil {
		t.Fatalf("SoftDeleteIncome: %v", err)
	}

	if _, err := repo.GetIncome(ctx, actor, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted income still readable: %v", err)
	}

	incomes, err := repo.ListIncomes(ctx, actor, IncomeFilter{})
	if err != nil {
		t.Fatalf("ListIncomes: %v", err)
	}
	if len(incomes) != 0 {
		t.Errorf("deleted income still listed")
	}

	cands, err := repo.ListDueCandidates(ctx, core.NewDate(2024, 6, 14))
	if err != nil {
		t.Fatalf("ListDueCandidates: %v", err)
	}
	if len(cands) != 0 {
		t.Errorf("deleted income still a reminder candidate")
	}
}

func TestDueCandidateFiltering(t *testing.T) {
	repo := newTestRepo(t)
	actor := seedUser(t, repo, "alice", "+962791234567")
	ctx := context.Background()
	asOf := core.NewDate(2024, 6, 14)

	seedIncome(t, repo, actor, nil) // live
	seedIncome(t, repo, actor, func(i *core.Income) {
		i.ExpirationDate = core.NewDate(2024, 1, 1) // expired
	})
	seedIncome(t, repo, actor, func(i *core.Income) {
		i.Active = false
	})

	cands, err := repo.ListDueCandidates(ctx, asOf)
	if err != nil {
		t.Fatalf("ListDueCandidates: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1 (expired and inactive excluded)", len(cands))
	}
	if cands[0].WhatsAppNumber != "+962791234567" {
		t.Errorf("candidate number = %q", cands[0].WhatsAppNumber)
	}
	if cands[0].OwnerName != "alice" {
		t.Errorf("candidate owner = %q", cands[0].OwnerName)
	}
}

func TestReminderLogUniqueness(t *testing.T) {
	repo := newTestRepo(t)
	actor := seedUser(t, repo, "alice", "+962791234567")
	ctx := context.Background()

	id := seedIncome(t, repo, actor, nil)
	occ := core.NewDate(2024, 7, 15)

	sent, err := repo.AlreadyReminded(ctx, id, occ)
	if err != nil || sent {
		t.Fatalf("AlreadyReminded before send = %v, %v", sent, err)
	}

	if err := repo.RecordReminder(ctx, id, occ, time.Now()); err != nil {
		t.Fatalf("RecordReminder: %v", err)
	}
	// Second record for the same occurrence is a no-op, not an error.
	if err := repo.RecordReminder(ctx, id, occ, time.Now()); err != nil {
		t.Fatalf("RecordReminder twice: %v", err)
	}

	sent, err = repo.AlreadyReminded(ctx, id, occ)
	if err != nil || !sent {
		t.Fatalf("AlreadyReminded after send = %v, %v", sent, err)
	}

	// A different occurrence of the same income is still unreminded.
	other, err := repo.AlreadyReminded(ctx, id, core.NewDate(2024, 8, 15))
	if err != nil || other {
		t.Fatalf("AlreadyReminded other occurrence = %v, %v", other, err)
	}
}

func TestCategoryProtectedWhileInUse(t *testing.T) {
	repo := newTestRepo(t)
	actor := seedUser(t, repo, "alice", "")
	ctx := context.Background()

	id := seedIncome(t, repo, actor, nil)
	catID := mustFirstCategory(t, repo, actor)

	if err := repo.SoftDeleteCategory(ctx, actor, catID); !errors.Is(err, ErrCategoryInUse) {
		t.Errorf("SoftDeleteCategory with live income = %v, want ErrCategoryInUse", err)
	}

	if err := repo.SoftDeleteIncome(ctx, actor, id); err != nil {
		t.Fatalf("SoftDeleteIncome: %v", err)
	}
	if err := repo.SoftDeleteCategory(ctx, actor, catID); err != nil {
		t.Errorf("SoftDeleteCategory after income removed = %v", err)
	}
}

func TestCategoryNameUniquePerOwner(t *testing.T) {
	repo := newTestRepo(t)
	alice := seedUser(t, repo, "alice", "")
	bob := seedUser(t, repo, "bob", "")
	ctx := context.Background()

	if _, err := repo.CreateCategory(ctx, alice, core.Category{OwnerID: alice.UserID, Name: "Salary"}); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	// The check is case-insensitive even though the stored name is ciphertext.
	for _, name := range []string{"Salary", "salary", "SALARY"} {
		_, err := repo.CreateCategory(ctx, alice, core.Category{OwnerID: alice.UserID, Name: name})
		if !errors.Is(err, ErrCategoryExists) {
			t.Errorf("duplicate %q = %v, want ErrCategoryExists", name, err)
		}
	}

	// Uniqueness is per owner, not global.
	if _, err := repo.CreateCategory(ctx, bob, core.Category{OwnerID: bob.UserID, Name: "Salary"}); err != nil {
		t.Errorf("other owner's category = %v, want nil", err)
	}
}

func TestExportStateLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	actor := seedUser(t, repo, "alice", "")
	ctx := context.Background()

	id := seedIncome(t, repo, actor, nil)

	pending, err := repo.ListPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExport: %v", err)
	}
	if len(pending) != 1 || pending[0] != id {
		t.Fatalf("pending = %v, want [%d]", pending, id)
	}

	if err := repo.MarkExported(ctx, id); err != nil {
		t.Fatalf("MarkExported: %v", err)
	}
	pending, _ = repo.ListPendingExport(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("synced income still pending")
	}

	// An update re-queues the row for export.
	inc, err := repo.GetIncome(ctx, actor, id)
	if err != nil {
		t.Fatalf("GetIncome: %v", err)
	}
	inc.Description = "Updated retainer"
	if err := repo.UpdateIncome(ctx, actor, inc); err != nil {
		t.Fatalf("UpdateIncome: %v", err)
	}
	pending, _ = repo.ListPendingExport(ctx, 10)
	if len(pending) != 1 {
		t.Errorf("updated income not re-queued for export")
	}
}
