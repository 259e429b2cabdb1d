package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/sheerif/eticketsv10/internal/status"
	"github.com/sheerif/eticketsv10/security"
	"github.com/sheerif/eticketsv10/services"
	"github.com/sheerif/eticketsv10/store"
)

type TicketHandler struct {
	verifier *services.Verifier
	issuer   *services.Issuer
	store    store.TicketStore
}

func NewTicketHandler(verifier *services.Verifier, issuer *services.Issuer, st store.TicketStore) *TicketHandler {
	return &TicketHandler{
		verifier: verifier,
		issuer:   issuer,
		store:    st,
	}
}

// verifyMessages are the stable external statuses of the scan API. The
// wording is part of the contract with deployed scanner firmware.
var verifyMessages = map[services.VerifyStatus]struct {
	code    int
	message string
}{
	services.VerifyEmptyKey:    {http.StatusBadRequest, "Clé de ticket requise"},
	services.VerifyKeyTooLong:  {http.StatusBadRequest, "Clé trop longue"},
	services.VerifyBadFormat:   {http.StatusBadRequest, "Format invalide"},
	services.VerifyBadChecksum: {http.StatusBadRequest, "Checksum invalide"},
	services.VerifyNotFound:    {http.StatusNotFound, "Ticket inconnu ou non autorisé"},
}

// Verify handles POST /api/tickets/verify.
func (h *TicketHandler) Verify(c echo.Context) error {
	owner := security.OwnerFrom(c)
	if owner == "" {
		return c.JSON(http.StatusForbidden, map[string]any{
			"ok":    false,
			"error": "Authentification requise",
		})
	}

	var req struct {
		TicketKey string `json:"ticket_key" form:"ticket_key"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"ok":    false,
			"error": "Clé de ticket requise",
		})
	}

	res, err := h.verifier.Verify(c.Request().Context(), owner, req.TicketKey)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"ok":    false,
			"error": "Erreur interne",
		})
	}

	if !res.OK() {
		m := verifyMessages[res.Status]
		return c.JSON(m.code, map[string]any{
			"ok":    false,
			"error": m.message,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"ok":          true,
		"ticket_id":   res.TicketID,
		"item_name":   res.ItemName,
		"verified_at": res.VerifiedAt.Format(time.RFC3339),
	})
}

// Issue handles POST /api/tickets/issue, called by checkout completion once
// per order line. The secret basis is passed explicitly by the caller.
func (h *TicketHandler) Issue(c echo.Context) error {
	var req struct {
		Owner       string `json:"owner"`
		OwnerSecret string `json:"owner_secret"`
		OrderRef    string `json:"order_ref"`
		OrderSecret string `json:"order_secret"`
		ItemRef     string `json:"item_ref"`
		Quantity    int    `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid request"})
	}
	if req.Owner == "" || req.OwnerSecret == "" || req.OrderRef == "" || req.OrderSecret == "" || req.ItemRef == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "missing identities or secret basis"})
	}

	if _, err := h.store.GetItem(c.Request().Context(), req.ItemRef); err != nil {
		if errors.Is(err, status.ErrItemNotFound) {
			return c.JSON(http.StatusBadRequest, map[string]any{"error": "unknown item"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "IssuanceFailed"})
	}

	tickets, err := h.issuer.IssueBatch(c.Request().Context(), services.IssueRequest{
		Owner:       req.Owner,
		OwnerSecret: req.OwnerSecret,
		OrderRef:    req.OrderRef,
		OrderSecret: req.OrderSecret,
		ItemRef:     req.ItemRef,
	}, req.Quantity)

	issued := make([]map[string]any, 0, len(tickets))
	for _, t := range tickets {
		issued = append(issued, map[string]any{
			"ticket_id":  t.ID,
			"credential": t.Credential,
			"qr_image":   t.QRImage,
		})
	}

	if err != nil {
		code := http.StatusInternalServerError
		label := "IssuanceFailed"
		if errors.Is(err, status.ErrEncodingFailed) {
			// The tickets minted so far exist; only the visual encoding
			// reference is missing and must be reconciled by the caller.
			code = http.StatusBadGateway
			label = "EncodingFailed"
		}
		return c.JSON(code, map[string]any{
			"error":   label,
			"tickets": issued,
		})
	}

	return c.JSON(http.StatusCreated, map[string]any{"tickets": issued})
}

// MyTickets handles GET /api/tickets/my, newest first.
func (h *TicketHandler) MyTickets(c echo.Context) error {
	owner := security.OwnerFrom(c)
	if owner == "" {
		return c.JSON(http.StatusForbidden, map[string]any{
			"ok":    false,
			"error": "Authentification requise",
		})
	}

	tickets, err := h.store.ListByOwner(c.Request().Context(), owner)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"ok":    false,
			"error": "Erreur interne",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"ok":      true,
		"tickets": tickets,
	})
}
