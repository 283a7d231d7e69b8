package ginserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"staybook/internal/app/apperr"
	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/queries"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type createBookingRequest struct {
	ListingID string `json:"listing_id"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Guests    int    `json:"guests"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.KindValidation, err))
		return
	}
	checkIn, err := parseDay(req.CheckIn)
	if err != nil {
		writeError(c, err)
		return
	}
	checkOut, err := parseDay(req.CheckOut)
	if err != nil {
		writeError(c, err)
		return
	}
	cmd := bookingapp.ReserveBookingCommand{
		CommandID:       uuid.NewString(),
		ListingID:       req.ListingID,
		GuestID:         actorID(c),
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Guests:          req.Guests,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	}
	view, err := commands.Dispatch[bookingapp.ReserveBookingCommand, *dto.BookingView](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h BookingHandler) Get(c *gin.Context) {
	q := bookingapp.GetBookingQuery{BookingID: c.Param("id"), ActorID: actorID(c)}
	view, err := queries.Ask[bookingapp.GetBookingQuery, *dto.BookingView](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h BookingHandler) List(c *gin.Context) {
	q := bookingapp.ListBookingsQuery{ActorID: actorID(c)}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, apperr.New(apperr.KindValidation, fmt.Sprintf("invalid limit %q", raw)))
			return
		}
		q.Limit = limit
	}
	views, err := queries.Ask[bookingapp.ListBookingsQuery, []dto.BookingView](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": views})
}

func (h BookingHandler) Cancel(c *gin.Context) {
	var req cancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, apperr.Wrap(apperr.KindValidation, err))
			return
		}
	}
	cmd := bookingapp.CancelBookingCommand{BookingID: c.Param("id"), ActorID: actorID(c), Reason: req.Reason}
	view, err := commands.Dispatch[bookingapp.CancelBookingCommand, *dto.BookingView](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// parseDay accepts a calendar date or an RFC 3339 timestamp.
func parseDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, apperr.New(apperr.KindValidation, "check_in and check_out are required")
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperr.New(apperr.KindValidation, fmt.Sprintf("invalid date %q", value))
	}
	return t, nil
}

var _ BookingHTTP = BookingHandler{}
