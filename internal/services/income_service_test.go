package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ruktech/income-tracker/internal/amqp"
	"github.com/ruktech/income-tracker/internal/core"
	"github.com/ruktech/income-tracker/internal/storage"
)

type fakeIncomeStore struct {
	nextID  int64
	incomes map[int64]core.Income
	cats    map[int64]core.Category
}

func newFakeIncomeStore() *fakeIncomeStore {
	return &fakeIncomeStore{
		incomes: make(map[int64]core.Income),
		cats:    make(map[int64]core.Category),
	}
}

func (f *fakeIncomeStore) owns(actor storage.Actor, ownerID int64) bool {
	return actor.Role == core.RoleSuperuser || actor.UserID == ownerID
}

func (f *fakeIncomeStore) CreateIncome(_ context.Context, _ storage.Actor, inc core.Income) (int64, error) {
	f.nextID++
	inc.ID = f.nextID
	f.incomes[inc.ID] = inc
	return inc.ID, nil
}

func (f *fakeIncomeStore) GetIncome(_ context.Context, actor storage.Actor, id int64) (core.Income, error) {
	inc, ok := f.incomes[id]
	if !ok || !f.owns(actor, inc.OwnerID) {
		return core.Income{}, storage.ErrNotFound
	}
	return inc, nil
}

func (f *fakeIncomeStore) UpdateIncome(_ context.Context, actor storage.Actor, inc core.Income) error {
	old, ok := f.incomes[inc.ID]
	if !ok || !f.owns(actor, old.OwnerID) {
		return storage.ErrNotFound
	}
	f.incomes[inc.ID] = inc
	return nil
}

func (f *fakeIncomeStore) SoftDeleteIncome(_ context.Context, actor storage.Actor, id int64) error {
	inc, ok := f.incomes[id]
	if !ok || !f.owns(actor, inc.OwnerID) {
		return storage.ErrNotFound
	}
	delete(f.incomes, id)
	return nil
}

func (f *fakeIncomeStore) ListIncomes(_ context.Context, actor storage.Actor, _ storage.IncomeFilter) ([]core.Income, error) {
	var out []core.Income
	for _, inc := range f.incomes {
		if f.owns(actor, inc.OwnerID) {
			out = append(out, inc)
		}
	}
	return out, nil
}

func (f *fakeIncomeStore) CreateCategory(_ context.Context, _ storage.Actor, c core.Category) (int64, error) {
	f.nextID++
	c.ID = f.nextID
	f.cats[c.ID] = c
	return c.ID, nil
}

func (f *fakeIncomeStore) ListCategories(_ context.Context, actor storage.Actor) ([]core.Category, error) {
	var out []core.Category
	for _, c := range f.cats {
		if f.owns(actor, c.OwnerID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeIncomeStore) SoftDeleteCategory(_ context.Context, actor storage.Actor, id int64) error {
	c, ok := f.cats[id]
	if !ok || !f.owns(actor, c.OwnerID) {
		return storage.ErrNotFound
	}
	delete(f.cats, id)
	return nil
}

type fakePublisher struct {
	events []string
	err    error
}

func (f *fakePublisher) PublishIncomeEvent(_ context.Context, id int64, action string) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, action)
	return nil
}

func serviceIncome() core.Income {
	return core.Income{
		CategoryID:  1,
		Description: "Freelance invoice",
		Amount:      core.Money{Cents: 75000},
		DueDate:     core.NewDate(2024, 8, 1),
	}
}

func TestIncomeService_CreateDefaults(t *testing.T) {
	store := newFakeIncomeStore()
	pub := &fakePublisher{}
	svc := NewIncomeService(store, pub, testLogger())
	actor := storage.Actor{UserID: 7, Role: core.RoleUser}
	today := core.NewDate(2024, 7, 1)

	got, err := svc.Create(context.Background(), actor, serviceIncome(), today)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.OwnerID != 7 {
		t.Errorf("owner = %d, want the actor", got.OwnerID)
	}
	if got.Currency != core.CurrencyUSD {
		t.Errorf("currency = %q, want default USD", got.Currency)
	}
	if got.Frequency != core.FrequencyNone {
		t.Errorf("frequency = %q, want default none", got.Frequency)
	}
	if !got.Active {
		t.Error("new income must be active")
	}
	wantExp := core.DefaultExpiration(today)
	if !got.ExpirationDate.Equal(wantExp.Time) {
		t.Errorf("expiration = %s, want default %s", got.ExpirationDate, wantExp)
	}
	if len(pub.events) != 1 || pub.events[0] != amqp.ActionCreated {
		t.Errorf("published events = %v, want [created]", pub.events)
	}
}

func TestIncomeService_CreateRejectsInvalid(t *testing.T) {
	svc := NewIncomeService(newFakeIncomeStore(), nil, testLogger())
	actor := storage.Actor{UserID: 7, Role: core.RoleUser}
	today := core.NewDate(2024, 7, 1)

	inc := serviceIncome()
	inc.Description = ""
	if _, err := svc.Create(context.Background(), actor, inc, today); !errors.Is(err, core.ErrEmptyDescription) {
		t.Errorf("Create with empty description = %v, want ErrEmptyDescription", err)
	}

	inc = serviceIncome()
	inc.Amount.Cents = -500
	if _, err := svc.Create(context.Background(), actor, inc, today); !errors.Is(err, core.ErrNegativeAmount) {
		t.Errorf("Create with negative amount = %v, want ErrNegativeAmount", err)
	}
}

func TestIncomeService_PublisherFailureDoesNotFailWrite(t *testing.T) {
	store := newFakeIncomeStore()
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewIncomeService(store, pub, testLogger())
	actor := storage.Actor{UserID: 7, Role: core.RoleUser}

	got, err := svc.Create(context.Background(), actor, serviceIncome(), core.NewDate(2024, 7, 1))
	if err != nil {
		t.Fatalf("Create with failing publisher: %v", err)
	}
	if got.ID == 0 {
		t.Error("income not stored")
	}
}

func TestIncomeService_DeletePublishes(t *testing.T) {
	store := newFakeIncomeStore()
	pub := &fakePublisher{}
	svc := NewIncomeService(store, pub, testLogger())
	actor := storage.Actor{UserID: 7, Role: core.RoleUser}

	created, err := svc.Create(context.Background(), actor, serviceIncome(), core.NewDate(2024, 7, 1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(context.Background(), actor, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(pub.events) != 2 || pub.events[1] != amqp.ActionDeleted {
		t.Errorf("published events = %v, want [created deleted]", pub.events)
	}

	// Deleting someone else's income never reveals it.
	other := storage.Actor{UserID: 8, Role: core.RoleUser}
	created, _ = svc.Create(context.Background(), actor, serviceIncome(), core.NewDate(2024, 7, 1))
	if err := svc.Delete(context.Background(), other, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign delete = %v, want ErrNotFound", err)
	}
}

func TestIncomeService_Categories(t *testing.T) {
	svc := NewIncomeService(newFakeIncomeStore(), nil, testLogger())
	actor := storage.Actor{UserID: 7, Role: core.RoleUser}

	if _, err := svc.CreateCategory(context.Background(), actor, "bad name!"); !errors.Is(err, core.ErrInvalidCategory) {
		t.Errorf("invalid category name = %v, want ErrInvalidCategory", err)
	}

	cat, err := svc.CreateCategory(context.Background(), actor, "Consulting")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if cat.OwnerID != actor.UserID {
		t.Errorf("category owner = %d, want %d", cat.OwnerID, actor.UserID)
	}

	cats, err := svc.ListCategories(context.Background(), actor)
	if err != nil || len(cats) != 1 {
		t.Errorf("ListCategories = %v, %v", cats, err)
	}
}
