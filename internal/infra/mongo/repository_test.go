package mongo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/horizon/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mock for DataStore interface.
type mockDataStore struct {
	findFunc      func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	insertOneFunc func(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

func (m *mockDataStore) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, filter, opts...)
	}
	return mongo.NewCursorFromDocuments(nil, nil, nil)
}

func (m *mockDataStore) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	if m.insertOneFunc != nil {
		return m.insertOneFunc(ctx, document, opts...)
	}
	return &mongo.InsertOneResult{}, nil
}

// Mock for CollectionProvider interface.
type mockCollectionProvider struct {
	collectionFunc func(name string) DataStore
}

func (m *mockCollectionProvider) Collection(name string) DataStore {
	if m.collectionFunc != nil {
		return m.collectionFunc(name)
	}
	return &mockDataStore{}
}

func providerFor(t *testing.T, want string, ds DataStore) *mockCollectionProvider {
	return &mockCollectionProvider{
		collectionFunc: func(name string) DataStore {
			if name != want {
				t.Errorf("Expected collection %s, got %s", want, name)
			}
			return ds
		},
	}
}

func mustDecimal128(t *testing.T, s string) primitive.Decimal128 {
	d, err := primitive.ParseDecimal128(s)
	if err != nil {
		t.Fatalf("ParseDecimal128(%q): %v", s, err)
	}
	return d
}

func TestGetTransfersByAccount(t *testing.T) {
	created := time.Date(2024, 2, 15, 9, 30, 0, 0, time.UTC)
	docs := []interface{}{
		transferDoc{
			ID:             "t1",
			Name:           "Rent share",
			Amount:         mustDecimal128(t, "420.50"),
			Channel:        "online",
			Category:       "Transfer",
			SenderBankID:   "bank-a",
			ReceiverBankID: "bank-b",
			CreatedAt:      created,
		},
		transferDoc{
			ID:             "t2",
			Name:           "Refund",
			Amount:         mustDecimal128(t, "15"),
			Channel:        "online",
			SenderBankID:   "bank-b",
			ReceiverBankID: "bank-a",
			CreatedAt:      created.Add(time.Hour),
		},
	}

	ds := &mockDataStore{
		findFunc: func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
			f, ok := filter.(bson.M)
			if !ok {
				t.Fatalf("Expected bson.M filter, got %T", filter)
			}
			if _, ok := f["$or"]; !ok {
				t.Errorf("Expected sender-or-receiver filter, got %v", f)
			}
			return mongo.NewCursorFromDocuments(docs, nil, nil)
		},
	}

	repo := NewRepository(providerFor(t, TransfersCollection, ds))
	records, err := repo.GetTransfersByAccount(context.Background(), "bank-a")
	if err != nil {
		t.Fatalf("GetTransfersByAccount failed: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if !records[0].Amount.Equal(decimal.RequireFromString("420.5")) {
		t.Errorf("Amount = %s, want 420.5", records[0].Amount)
	}
	if records[0].SenderAccountID != "bank-a" || records[0].ReceiverAccountID != "bank-b" {
		t.Errorf("Unexpected parties: %+v", records[0])
	}
	if !records[0].CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %s, want %s", records[0].CreatedAt, created)
	}
	if records[1].Category != "" {
		t.Errorf("Expected empty category, got %q", records[1].Category)
	}
}

func TestGetTransfersByAccount_Empty(t *testing.T) {
	repo := NewRepository(providerFor(t, TransfersCollection, &mockDataStore{}))

	records, err := repo.GetTransfersByAccount(context.Background(), "bank-a")
	if err != nil {
		t.Fatalf("GetTransfersByAccount failed: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", records)
	}
}

func TestGetTransfersByAccount_FindError(t *testing.T) {
	expectedErr := errors.New("connection reset")
	ds := &mockDataStore{
		findFunc: func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
			return nil, expectedErr
		},
	}

	repo := NewRepository(providerFor(t, TransfersCollection, ds))
	_, err := repo.GetTransfersByAccount(context.Background(), "bank-a")
	if !errors.Is(err, expectedErr) {
		t.Errorf("Expected %v, got %v", expectedErr, err)
	}
}

func TestInsertTransfer(t *testing.T) {
	rec := domain.TransferRecord{
		ID:                "t1",
		Name:              "Rent share",
		Amount:            decimal.RequireFromString("420.50"),
		CreatedAt:         time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		Channel:           "online",
		Category:          "Transfer",
		SenderAccountID:   "bank-a",
		ReceiverAccountID: "bank-b",
	}

	var inserted transferDoc
	ds := &mockDataStore{
		insertOneFunc: func(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
			doc, ok := document.(transferDoc)
			if !ok {
				t.Fatalf("Expected transferDoc, got %T", document)
			}
			inserted = doc
			return &mongo.InsertOneResult{InsertedID: doc.ID}, nil
		},
	}

	repo := NewRepository(providerFor(t, TransfersCollection, ds))
	if err := repo.InsertTransfer(context.Background(), rec); err != nil {
		t.Fatalf("InsertTransfer failed: %v", err)
	}

	if inserted.ID != "t1" || inserted.SenderBankID != "bank-a" || inserted.ReceiverBankID != "bank-b" {
		t.Errorf("Unexpected document: %+v", inserted)
	}
	back, err := inserted.record()
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if !back.Amount.Equal(rec.Amount) {
		t.Errorf("Amount = %s, want %s", back.Amount, rec.Amount)
	}
}

func TestInsertTransfer_Errors(t *testing.T) {
	repo := NewRepository(&mockCollectionProvider{})
	if err := repo.InsertTransfer(context.Background(), domain.TransferRecord{}); err == nil {
		t.Error("Expected error for empty transfer id")
	}

	expectedErr := errors.New("duplicate key")
	ds := &mockDataStore{
		insertOneFunc: func(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
			return nil, expectedErr
		},
	}
	repo = NewRepository(providerFor(t, TransfersCollection, ds))
	err := repo.InsertTransfer(context.Background(), domain.TransferRecord{ID: "t1", Amount: decimal.NewFromInt(1)})
	if err == nil || !strings.Contains(err.Error(), expectedErr.Error()) {
		t.Errorf("Expected insert error, got: %v", err)
	}
}

func TestGetBank(t *testing.T) {
	ds := &mockDataStore{
		findFunc: func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
			if filter.(bson.M)["_id"] != "bank-1" {
				t.Errorf("Unexpected filter: %v", filter)
			}
			return mongo.NewCursorFromDocuments([]interface{}{
				bankDoc{ID: "bank-1", UserID: "user-1", AccountID: "acc-1", AccessToken: "access-sandbox-1", ShareableID: "c2hhcmU="},
			}, nil, nil)
		},
	}

	repo := NewRepository(providerFor(t, BanksCollection, ds))
	bank, err := repo.GetBank(context.Background(), "bank-1")
	if err != nil {
		t.Fatalf("GetBank failed: %v", err)
	}
	if bank == nil || bank.AccessToken != "access-sandbox-1" || bank.ShareableID != "c2hhcmU=" {
		t.Errorf("Unexpected bank: %+v", bank)
	}
}

func TestGetBank_NotFound(t *testing.T) {
	repo := NewRepository(providerFor(t, BanksCollection, &mockDataStore{}))

	bank, err := repo.GetBank(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetBank failed: %v", err)
	}
	if bank != nil {
		t.Errorf("Expected nil bank, got %+v", bank)
	}
}

func TestListBanksByUser(t *testing.T) {
	ds := &mockDataStore{
		findFunc: func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
			return mongo.NewCursorFromDocuments([]interface{}{
				bankDoc{ID: "bank-1", UserID: "user-1"},
				bankDoc{ID: "bank-2", UserID: "user-1"},
			}, nil, nil)
		},
	}

	repo := NewRepository(providerFor(t, BanksCollection, ds))
	banks, err := repo.ListBanksByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListBanksByUser failed: %v", err)
	}
	if len(banks) != 2 || banks[0].ID != "bank-1" || banks[1].ID != "bank-2" {
		t.Errorf("Unexpected banks: %+v", banks)
	}
}

func TestInsertBank(t *testing.T) {
	bank := domain.Bank{
		ID:               "item-1",
		UserID:           "user-1",
		AccountID:        "acc-1",
		AccessToken:      "access-sandbox-1",
		FundingSourceURL: "https://api-sandbox.dwolla.com/funding-sources/fs-1",
		ShareableID:      "YWNjLTE=",
	}

	var inserted bankDoc
	ds := &mockDataStore{
		insertOneFunc: func(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
			doc, ok := document.(bankDoc)
			if !ok {
				t.Fatalf("Expected bankDoc, got %T", document)
			}
			inserted = doc
			return &mongo.InsertOneResult{InsertedID: doc.ID}, nil
		},
	}

	repo := NewRepository(providerFor(t, BanksCollection, ds))
	if err := repo.InsertBank(context.Background(), bank); err != nil {
		t.Fatalf("InsertBank failed: %v", err)
	}

	if inserted.ID != "item-1" || inserted.AccessToken != "access-sandbox-1" || inserted.FundingSourceURL != bank.FundingSourceURL {
		t.Errorf("Unexpected document: %+v", inserted)
	}
	if inserted.CreatedAt.IsZero() {
		t.Error("Expected created_at to be stamped")
	}
}

func TestInsertBank_Errors(t *testing.T) {
	repo := NewRepository(&mockCollectionProvider{})
	if err := repo.InsertBank(context.Background(), domain.Bank{ID: "item-1"}); err == nil {
		t.Error("Expected error for missing user id")
	}

	expectedErr := errors.New("duplicate key")
	ds := &mockDataStore{
		insertOneFunc: func(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
			return nil, expectedErr
		},
	}
	repo = NewRepository(providerFor(t, BanksCollection, ds))
	err := repo.InsertBank(context.Background(), domain.Bank{ID: "item-1", UserID: "user-1"})
	if err == nil || !strings.Contains(err.Error(), expectedErr.Error()) {
		t.Errorf("Expected insert error, got: %v", err)
	}
}
