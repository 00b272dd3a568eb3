package dashboard

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmsd/dmsd/internal/contract"
	"github.com/dmsd/dmsd/internal/ethaddr"
	"github.com/dmsd/dmsd/internal/session"
	"github.com/dmsd/dmsd/internal/wallet"
)

var (
	// ErrPanelNotActive is returned by a panel operation while another panel is shown.
	ErrPanelNotActive = errors.New("panel is not active")
	// ErrNotConnected is returned by panel operations before a wallet connected.
	ErrNotConnected = errors.New("no wallet connected")
	// ErrInvalidInput reports a form value the panel refuses before calling the contract.
	ErrInvalidInput = errors.New("invalid input")
	// ErrClosed is returned once the dashboard session ended.
	ErrClosed = errors.New("dashboard closed")
	// ErrSessionNotFound is returned by the hub for unknown or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
)

// HTTPStatus maps a dashboard, contract or wallet error onto a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, wallet.ErrRejected):
		return http.StatusForbidden
	case errors.Is(err, wallet.ErrNoSigner):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ethaddr.ErrInvalidAddress),
		errors.Is(err, ethaddr.ErrChecksum), errors.Is(err, ethaddr.ErrZeroAddress):
		return http.StatusBadRequest
	case errors.Is(err, contract.ErrReverted), errors.Is(err, ErrPanelNotActive):
		return http.StatusConflict
	case errors.Is(err, contract.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrClosed), errors.Is(err, session.ErrStoreClosed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
