package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"staybook/internal/app/uow"
	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/money"
)

type listingFixture struct {
	ID          string `json:"id"`
	Owner       string `json:"owner"`
	Title       string `json:"title"`
	NightlyRate string `json:"nightly_rate"`
	Currency    string `json:"currency"`
	Capacity    int    `json:"capacity"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	Available   *bool  `json:"available"`
}

func (a *application) loadListingFixtures(ctx context.Context, path, currency string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("listing fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("listing fixtures file empty", "path", path)
		return nil
	}

	var fixtures []listingFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	now := time.Now().UTC()
	for _, fx := range fixtures {
		listing, err := fx.listing(currency, now)
		if err != nil {
			logger.Error("fixture invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		opts := uow.TxOptions{Locks: []string{uow.ListingLock(listing.ID)}}
		err = uow.Run(ctx, a.factory, opts, func(ctx context.Context, unit uow.UnitOfWork) error {
			return unit.Listings().Save(ctx, listing)
		})
		if err != nil {
			logger.Error("cannot store fixture listing", "listing_id", fx.ID, "error", err)
			continue
		}
		logger.Info("listing fixture imported", "listing_id", listing.ID)
	}
	return nil
}

func (fx listingFixture) listing(currency string, now time.Time) (*listings.Listing, error) {
	if strings.TrimSpace(fx.Currency) != "" {
		currency = strings.ToUpper(fx.Currency)
	}
	rate, err := money.ParseDecimal(fx.NightlyRate, currency)
	if err != nil {
		return nil, err
	}
	available := true
	if fx.Available != nil {
		available = *fx.Available
	}
	return listings.NewListing(listings.CreateListingParams{
		ID:          listings.ListingID(fx.ID),
		Owner:       listings.OwnerID(fx.Owner),
		Title:       fx.Title,
		NightlyRate: rate,
		Capacity:    fx.Capacity,
		WindowStart: parseFixtureDate(fx.WindowStart),
		WindowEnd:   parseFixtureDate(fx.WindowEnd),
		Available:   available,
		Now:         now,
	})
}

func parseFixtureDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

func defaultListingFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "listings.json"),
		filepath.Join("..", "..", "data", "listings.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
