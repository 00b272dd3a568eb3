package dashboard

import (
	"math/big"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/dmsd/dmsd/internal/auth"
	"github.com/dmsd/dmsd/internal/nav"
	"github.com/dmsd/dmsd/internal/session"
	"github.com/dmsd/dmsd/internal/txlog"
)

// Handler exposes the dashboard and its panels over HTTP.
type Handler struct {
	hub     *Hub
	journal txlog.Journal
}

// NewHandler constructs a dashboard HTTP handler.
func NewHandler(hub *Hub, journal txlog.Journal) *Handler {
	return &Handler{hub: hub, journal: journal}
}

type sidebarEntry struct {
	Label  string `json:"label"`
	Panel  string `json:"panel,omitempty"`
	Active bool   `json:"active"`
	Logout bool   `json:"logout,omitempty"`
}

type dashboardResponse struct {
	SessionID string         `json:"session_id"`
	State     session.State  `json:"state"`
	Active    nav.Panel      `json:"active"`
	Sidebar   []sidebarEntry `json:"sidebar"`
}

type navRequest struct {
	Name string `json:"name"`
}

type navResponse struct {
	Active    nav.Panel `json:"active"`
	Changed   bool      `json:"changed"`
	Known     bool      `json:"known"`
	LoggedOut bool      `json:"logged_out,omitempty"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type transferRequest struct {
	AmountWei string `json:"amount_wei"`
}

type taskResponse struct {
	TxHash string `json:"tx_hash"`
	Method string `json:"method"`
	Panel  string `json:"panel"`
	Status string `json:"status"`
}

// Show returns the session state, the active panel and the sidebar.
func (h *Handler) Show(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(render(d))
}

// Navigate applies a sidebar click.
func (h *Handler) Navigate(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return err
	}
	var req navRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	out, err := d.Select(c.UserContext(), req.Name)
	if err != nil {
		return fiber.NewError(HTTPStatus(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(navResponse{Active: out.Panel, Changed: out.Changed, Known: out.Known, LoggedOut: out.Logout})
}

// Home returns the summary panel.
func (h *Handler) Home(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return err
	}
	summary, err := d.Summary(c.UserContext())
	if err != nil {
		return fiber.NewError(HTTPStatus(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(summary)
}

// Subscription returns the enrolment status.
func (h *Handler) Subscription(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return err
	}
	view, err := d.Subscription()
	if err != nil {
		return fiber.NewError(HTTPStatus(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(view)
}

// Register submits the admin profile.
func (h *Handler) Register(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return err
	}
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return accepted(c)(d.Register(c.UserContext(), req.Username, req.Email))
}

// Subscribe enrols the admin.
func (h *Handler) Subscribe(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return err
	}
	return accepted(c)(d.Subscribe(c.UserContext()))
}

// CreateMultisig submits the vault creation form.
func (h *Handler) CreateMultisig(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return err
	}
	var form MultisigForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return accepted(c)(d.CreateMultisig(c.UserContext(), form))
}

// Vault returns the approval status of the admin.
func (h *Handler) Vault(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return err
	}
	view, err := d.VaultStatus(c.UserContext())
	if err != nil {
		return fiber.NewError(HTTPStatus(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(view)
}

// ValidateApproval submits the admin approval.
func (h *Handler) ValidateApproval(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return err
	}
	return accepted(c)(d.ValidateApproval(c.UserContext()))
}

// Multisig returns the personal multisig of the admin.
func (h *Handler) Multisig(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return err
	}
	view, err := d.Multisig(c.UserContext())
	if err != nil {
		return fiber.NewError(HTTPStatus(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(view)
}

// Transfer moves funds into the multisig.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	var amount *big.Int
	if raw := strings.TrimSpace(req.AmountWei); raw != "" {
		parsed, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return fiber.NewError(http.StatusBadRequest, "amount_wei must be a decimal integer")
		}
		amount = parsed
	}
	return accepted(c)(d.TransferToMultisig(c.UserContext(), amount))
}

// Approval returns the approval status of a protected wallet.
func (h *Handler) Approval(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return err
	}
	view, err := d.ApprovalStatus(c.UserContext())
	if err != nil {
		return fiber.NewError(HTTPStatus(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(view)
}

// Approve submits the protected wallet's approval.
func (h *Handler) Approve(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return err
	}
	return accepted(c)(d.Approve(c.UserContext()))
}

// Transactions lists the journal of the authenticated wallet.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	claims, ok := c.Locals(auth.ClaimsLocal).(auth.Claims)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing session")
	}
	address, err := claims.Address()
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	entries, err := h.journal.ListByAddress(c.UserContext(), address, c.QueryInt("limit", 0))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": entries})
}

func (h *Handler) dashboard(c *fiber.Ctx) (*Dashboard, error) {
	claims, ok := c.Locals(auth.ClaimsLocal).(auth.Claims)
	if !ok {
		return nil, fiber.NewError(http.StatusUnauthorized, "missing session")
	}
	d, err := h.hub.Get(c.UserContext(), claims.SessionID)
	if err != nil {
		return nil, fiber.NewError(HTTPStatus(err), err.Error())
	}
	return d, nil
}

func accepted(c *fiber.Ctx) func(*Task, error) error {
	return func(task *Task, err error) error {
		if err != nil {
			return fiber.NewError(HTTPStatus(err), err.Error())
		}
		return c.Status(http.StatusAccepted).JSON(taskResponse{
			TxHash: task.Tx.Hash.Hex(),
			Method: task.Tx.Method,
			Panel:  task.Panel.String(),
			Status: string(TaskPending),
		})
	}
}

func render(d *Dashboard) dashboardResponse {
	snap := d.Snapshot()
	entries := d.Sidebar()
	sidebar := make([]sidebarEntry, len(entries))
	for i, e := range entries {
		sidebar[i] = sidebarEntry{Label: e.Label, Active: e.Active, Logout: e.Item.Logout}
		if !e.Item.Logout {
			sidebar[i].Panel = e.Item.Panel.String()
		}
	}
	return dashboardResponse{SessionID: d.ID(), State: snap.State, Active: snap.Active, Sidebar: sidebar}
}
