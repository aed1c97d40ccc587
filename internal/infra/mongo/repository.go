package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/horizon/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	TransfersCollection = "transfers"
	BanksCollection     = "banks"
)

type transferDoc struct {
	ID             string               `bson:"_id"`
	Name           string               `bson:"name"`
	Amount         primitive.Decimal128 `bson:"amount"`
	Channel        string               `bson:"channel"`
	Category       string               `bson:"category,omitempty"`
	SenderBankID   string               `bson:"sender_bank_id"`
	ReceiverBankID string               `bson:"receiver_bank_id"`
	CreatedAt      time.Time            `bson:"created_at"`
}

type bankDoc struct {
	ID               string    `bson:"_id"`
	UserID           string    `bson:"user_id"`
	AccountID        string    `bson:"account_id"`
	AccessToken      string    `bson:"access_token"`
	FundingSourceURL string    `bson:"funding_source_url,omitempty"`
	ShareableID      string    `bson:"shareable_id,omitempty"`
	CreatedAt        time.Time `bson:"created_at,omitempty"`
}

// Repository stores transfers and banks in MongoDB.
type Repository struct {
	provider CollectionProvider
}

// NewRepository creates a Repository.
func NewRepository(provider CollectionProvider) *Repository {
	return &Repository{provider: provider}
}

// GetTransfersByAccount returns every transfer where accountID is the sender
// or the receiver, oldest first.
func (r *Repository) GetTransfersByAccount(ctx context.Context, accountID string) ([]domain.TransferRecord, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_bank_id": accountID},
		bson.M{"receiver_bank_id": accountID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := r.provider.Collection(TransfersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("GetTransfersByAccount: %w", err)
	}
	defer cur.Close(ctx)

	records := []domain.TransferRecord{}
	for cur.Next(ctx) {
		var doc transferDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("GetTransfersByAccount: decoding: %w", err)
		}
		rec, err := doc.record()
		if err != nil {
			return nil, fmt.Errorf("GetTransfersByAccount: %w", err)
		}
		records = append(records, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("GetTransfersByAccount: cursor: %w", err)
	}

	return records, nil
}

// InsertTransfer records a completed transfer.
func (r *Repository) InsertTransfer(ctx context.Context, rec domain.TransferRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("InsertTransfer: transfer id cannot be empty")
	}

	amount, err := primitive.ParseDecimal128(rec.Amount.String())
	if err != nil {
		return fmt.Errorf("InsertTransfer: amount %s: %w", rec.Amount, err)
	}

	doc := transferDoc{
		ID:             rec.ID,
		Name:           rec.Name,
		Amount:         amount,
		Channel:        rec.Channel,
		Category:       rec.Category,
		SenderBankID:   rec.SenderAccountID,
		ReceiverBankID: rec.ReceiverAccountID,
		CreatedAt:      rec.CreatedAt,
	}
	if _, err := r.provider.Collection(TransfersCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("InsertTransfer: %w", err)
	}
	return nil
}

// GetBank finds a bank by ID. Returns nil if no bank matches.
func (r *Repository) GetBank(ctx context.Context, bankID string) (*domain.Bank, error) {
	if bankID == "" {
		return nil, fmt.Errorf("GetBank: bank id cannot be empty")
	}

	banks, err := r.findBanks(ctx, bson.M{"_id": bankID}, options.Find().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("GetBank: %w", err)
	}
	if len(banks) == 0 {
		return nil, nil
	}
	return &banks[0], nil
}

// ListBanksByUser returns the user's banks, oldest link first.
func (r *Repository) ListBanksByUser(ctx context.Context, userID string) ([]domain.Bank, error) {
	banks, err := r.findBanks(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("ListBanksByUser: %w", err)
	}
	return banks, nil
}

// InsertBank records a newly linked bank, stamped with the current time.
func (r *Repository) InsertBank(ctx context.Context, bank domain.Bank) error {
	if bank.ID == "" || bank.UserID == "" {
		return fmt.Errorf("InsertBank: bank id and user id cannot be empty")
	}

	doc := bankDoc{
		ID:               bank.ID,
		UserID:           bank.UserID,
		AccountID:        bank.AccountID,
		AccessToken:      bank.AccessToken,
		FundingSourceURL: bank.FundingSourceURL,
		ShareableID:      bank.ShareableID,
		CreatedAt:        time.Now().UTC(),
	}
	if _, err := r.provider.Collection(BanksCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("InsertBank: %w", err)
	}
	return nil
}

func (r *Repository) findBanks(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Bank, error) {
	cur, err := r.provider.Collection(BanksCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var banks []domain.Bank
	for cur.Next(ctx) {
		var doc bankDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding: %w", err)
		}
		banks = append(banks, domain.Bank{
			ID:               doc.ID,
			UserID:           doc.UserID,
			AccountID:        doc.AccountID,
			AccessToken:      doc.AccessToken,
			FundingSourceURL: doc.FundingSourceURL,
			ShareableID:      doc.ShareableID,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}
	return banks, nil
}

func (d transferDoc) record() (domain.TransferRecord, error) {
	amount, err := decimal.NewFromString(d.Amount.String())
	if err != nil {
		return domain.TransferRecord{}, fmt.Errorf("transfer %s: amount %s: %w", d.ID, d.Amount, err)
	}
	return domain.TransferRecord{
		ID:                d.ID,
		Name:              d.Name,
		Amount:            amount,
		CreatedAt:         d.CreatedAt,
		Channel:           d.Channel,
		Category:          d.Category,
		SenderAccountID:   d.SenderBankID,
		ReceiverAccountID: d.ReceiverBankID,
	}, nil
}
