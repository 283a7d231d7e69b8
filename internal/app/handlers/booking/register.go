package booking

import (
	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
)

// Register wires the booking commands and queries onto the buses.
func Register(cmdBus *commands.InMemoryBus, queryBus *queries.InMemoryBus, reserve *ReserveBookingHandler, cancel *CancelBookingHandler, get *GetBookingHandler, list *ListBookingsHandler) {
	commands.RegisterHandler(cmdBus, reserveBookingKey, reserve)
	commands.RegisterHandler(cmdBus, cancelBookingKey, cancel)
	queries.RegisterHandler(queryBus, getBookingKey, get)
	queries.RegisterHandler(queryBus, listBookingsKey, list)
}
