package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
)

type PaymentRepository struct {
	col *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	return &PaymentRepository{col: db.Collection(paymentsCollection)}
}

func (r *PaymentRepository) ByID(ctx context.Context, id domainpayment.PaymentID) (*domainpayment.Payment, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *PaymentRepository) ByReference(ctx context.Context, reference string) (*domainpayment.Payment, error) {
	return r.findOne(ctx, bson.M{"reference": reference})
}

func (r *PaymentRepository) FindPending(ctx context.Context, bookingID domainbooking.BookingID) (*domainpayment.Payment, error) {
	return r.findOne(ctx, bson.M{"booking_id": string(bookingID), "status": string(domainpayment.StatusPending)})
}

func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID domainbooking.BookingID) ([]*domainpayment.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"booking_id": string(bookingID)}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*domainpayment.Payment
	for cur.Next(ctx) {
		var doc paymentDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

func (r *PaymentRepository) Insert(ctx context.Context, p *domainpayment.Payment) error {
	_, err := r.col.InsertOne(ctx, newPaymentDocument(p))
	switch {
	case err == nil:
		return nil
	case isDuplicateOn(err, pendingPaymentIndex):
		return domainpayment.ErrPendingExists
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("mongo: payment %s already exists: %w", p.Reference, err)
	}
	return mapWriteErr(err)
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id domainpayment.PaymentID, expected, next domainpayment.Status, transactionID string, at time.Time) (bool, error) {
	set := bson.M{"status": string(next), "updated_at": at.UTC().UnixMilli()}
	if transactionID != "" {
		set["transaction_id"] = transactionID
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": string(id), "status": string(expected)}, bson.M{"$set": set})
	if err != nil {
		return false, mapWriteErr(err)
	}
	return res.MatchedCount == 1, nil
}

func (r *PaymentRepository) findOne(ctx context.Context, filter bson.M) (*domainpayment.Payment, error) {
	var doc paymentDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainpayment.ErrPaymentNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

var _ domainpayment.Repository = (*PaymentRepository)(nil)
