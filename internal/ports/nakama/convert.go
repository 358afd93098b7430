package nakama

import (
	"context"
	"errors"

	"memoryscramble/internal/app"
	"memoryscramble/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

// gRPC status codes Nakama uses for runtime.Error.
const (
	codeCanceled           = 1
	codeInvalidArgument    = 3
	codeDeadlineExceeded   = 4
	codeNotFound           = 5
	codeFailedPrecondition = 9
	codeInternal           = 13
)

// boardResponse is the wire form of a board view, shared by the RPCs and
// the realtime match handler.
type boardResponse struct {
	GameID string       `json:"gameId"`
	Board  app.Snapshot `json:"board"`
}

// flipResponse reports a flip outcome alongside the caller's updated view.
type flipResponse struct {
	GameID   string       `json:"gameId"`
	Card     string       `json:"card"`
	Resolved bool         `json:"resolved"`
	Matched  bool         `json:"matched"`
	Board    app.Snapshot `json:"board"`
}

func toBoardResponse(gameID string, snap app.Snapshot) boardResponse {
	return boardResponse{GameID: gameID, Board: snap}
}

func toFlipResponse(gameID string, res app.FlipResult, snap app.Snapshot) flipResponse {
	return flipResponse{
		GameID:   gameID,
		Card:     res.Card,
		Resolved: res.Resolved,
		Matched:  res.Matched,
		Board:    snap,
	}
}

// rpcError maps game errors onto Nakama runtime errors with gRPC codes.
func rpcError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return runtime.NewError("request canceled", codeCanceled)
	case errors.Is(err, context.DeadlineExceeded):
		return runtime.NewError("request timed out", codeDeadlineExceeded)
	case errors.Is(err, app.ErrUnknownGame):
		return runtime.NewError(err.Error(), codeNotFound)
	case errors.Is(err, domain.ErrOutOfBounds),
		errors.Is(err, domain.ErrInvalidDimensions),
		errors.Is(err, domain.ErrInvalidCardSet),
		errors.Is(err, app.ErrEmptyPlayer):
		return runtime.NewError(err.Error(), codeInvalidArgument)
	case errors.Is(err, domain.ErrNoCard),
		errors.Is(err, domain.ErrNotFaceUp),
		errors.Is(err, app.ErrContested),
		errors.Is(err, app.ErrCardPending):
		return runtime.NewError(err.Error(), codeFailedPrecondition)
	default:
		return runtime.NewError(err.Error(), codeInternal)
	}
}
