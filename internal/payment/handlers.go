package payment

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/kindbridge/backend-giving/internal/common"
)

// Handler exposes the donation payment endpoints.
type Handler struct {
	Svc            *Service
	PublishableKey string
	Validate       *validator.Validate
	Log            zerolog.Logger
}

// CreateIntent handles POST /payment/create-intent.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var in CreateIntentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	secret, err := h.Svc.CreateIntent(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"clientSecret": secret})
}

// Config handles GET /payment/config and returns the key the checkout UI
// initialises the card processor's JS SDK with.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]string{"publishableKey": h.PublishableKey})
}

var successTmpl = template.Must(template.New("success").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Thank you!</title></head>
<body>
<h1>Thank you for your donation!</h1>
<p>Your payment of {{.TotalAmount}} for item {{.ItemID}} was received.</p>
<p>A confirmation email is on its way.</p>
</body>
</html>
`))

// Success handles GET /payment/success/{id}/{totalAmount}, the human-facing
// confirmation page the checkout UI redirects to. It renders whatever the
// redirect carries and performs no reconciliation.
func (h *Handler) Success(w http.ResponseWriter, r *http.Request) {
	data := struct {
		ItemID      string
		TotalAmount string
	}{
		ItemID:      strings.TrimSpace(chi.URLParam(r, "id")),
		TotalAmount: strings.TrimSpace(chi.URLParam(r, "totalAmount")),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := successTmpl.Execute(w, data); err != nil {
		h.Log.Error().Err(err).Msg("render success view")
	}
}
