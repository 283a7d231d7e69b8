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
	domainlistings "staybook/internal/domain/listings"
	domainrange "staybook/internal/domain/shared/daterange"
)

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(bookingsCollection)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) FindOverlapping(ctx context.Context, listingID domainlistings.ListingID, dr domainrange.DateRange, excluding domainbooking.BookingID) ([]*domainbooking.Booking, error) {
	filter := overlapFilter(listingID, dr, excluding)
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeBookings(ctx, cur)
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	_, err := r.col.InsertOne(ctx, newBookingDocument(b))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongo: booking %s already exists: %w", b.ID, err)
	}
	return mapWriteErr(err)
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, id domainbooking.BookingID, expected, next domainbooking.Status, at time.Time) (bool, error) {
	filter := bson.M{"_id": string(id), "status": string(expected)}
	update := bson.M{"$set": bson.M{"status": string(next), "updated_at": at.UTC().UnixMilli()}}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return res.MatchedCount == 1, nil
}

func (r *BookingRepository) ListExpirable(ctx context.Context, createdBefore time.Time, limit int) ([]*domainbooking.Booking, error) {
	filter := bson.M{"status": string(domainbooking.StatusPending), "created_at": bson.M{"$lte": createdBefore.UnixMilli()}}
	return r.find(ctx, filter, bson.D{{Key: "created_at", Value: 1}}, limit)
}

func (r *BookingRepository) ListCompletable(ctx context.Context, checkOutBy time.Time, limit int) ([]*domainbooking.Booking, error) {
	filter := bson.M{"status": string(domainbooking.StatusConfirmed), "check_out": bson.M{"$lte": checkOutBy.UnixMilli()}}
	return r.find(ctx, filter, bson.D{{Key: "check_out", Value: 1}}, limit)
}

func (r *BookingRepository) ListForParticipant(ctx context.Context, guestID string, listingIDs []domainlistings.ListingID, limit int) ([]*domainbooking.Booking, error) {
	var or bson.A
	if guestID != "" {
		or = append(or, bson.M{"guest_id": guestID})
	}
	if len(listingIDs) > 0 {
		ids := make([]string, 0, len(listingIDs))
		for _, id := range listingIDs {
			ids = append(ids, string(id))
		}
		or = append(or, bson.M{"listing_id": bson.M{"$in": ids}})
	}
	if len(or) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"$or": or}, bson.D{{Key: "created_at", Value: -1}}, limit)
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, sort bson.D, limit int) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return decodeBookings(ctx, cur)
}

// overlapFilter matches active bookings of the listing with check_in < dr.CheckOut
// and check_out > dr.CheckIn.
func overlapFilter(listingID domainlistings.ListingID, dr domainrange.DateRange, excluding domainbooking.BookingID) bson.M {
	active := make([]string, 0, len(domainbooking.ActiveStatuses))
	for _, s := range domainbooking.ActiveStatuses {
		active = append(active, string(s))
	}
	filter := bson.M{
		"listing_id": string(listingID),
		"status":     bson.M{"$in": active},
		"check_in":   bson.M{"$lt": dr.CheckOut.UnixMilli()},
		"check_out":  bson.M{"$gt": dr.CheckIn.UnixMilli()},
	}
	if excluding != "" {
		filter["_id"] = bson.M{"$ne": string(excluding)}
	}
	return filter
}

func decodeBookings(ctx context.Context, cur *mongo.Cursor) ([]*domainbooking.Booking, error) {
	defer cur.Close(ctx)
	var out []*domainbooking.Booking
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
