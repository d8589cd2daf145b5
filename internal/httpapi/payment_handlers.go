package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"epcbooks.org/internal/audit"
	"epcbooks.org/internal/obs"
	"epcbooks.org/internal/payment"
	"epcbooks.org/internal/webhook"
)

type payInitRequest struct {
	Email     string `json:"email"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

func (a *API) handlePayInit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req payInitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		obs.CountPaymentInit("bad_request")
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := a.payments.Initiate(r.Context(), req.Email, req.Amount, req.Reference)
	if err != nil {
		obs.CountPaymentInit(initOutcome(err))
		handlePaymentError(w, r, err)
		return
	}

	obs.CountPaymentInit("ok")
	_ = audit.LogEvent(r.Context(), "payment.initiated", map[string]any{
		"amount": req.Amount,
	})

	// Gateway payload passes through verbatim.
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

func initOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, payment.ErrLocked):
		return "locked"
	case errors.Is(err, payment.ErrUpstream):
		return "upstream_error"
	default:
		return "bad_request"
	}
}

func (a *API) handlePaystackWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "cannot read request body")
		return
	}

	sig := strings.TrimSpace(r.Header.Get(webhook.SignatureHeader))
	if sig == "" {
		obs.CountWebhookEvent("unknown", "missing_signature")
		writeError(w, r, http.StatusBadRequest, "missing signature")
		return
	}
	if !a.verifier.Verify(body, sig) {
		obs.CountWebhookEvent("unknown", "bad_signature")
		writeError(w, r, http.StatusBadRequest, "invalid signature")
		return
	}

	evt, err := webhook.ParseEvent(body)
	if err != nil {
		obs.CountWebhookEvent("unknown", "malformed")
		writeError(w, r, http.StatusBadRequest, "malformed event payload")
		return
	}

	resp := map[string]any{"status": "ok"}
	grant, err := a.payments.HandleEvent(r.Context(), evt)
	switch {
	case err != nil:
		// The event is authenticated, so acknowledge it either way; the
		// gateway retries on non-2xx and a bad payload will never improve.
		obs.CountWebhookEvent(evt.Event, "error")
		obs.Log("error", "webhook_processing_failed", map[string]any{
			"event": evt.Event,
			"err":   err.Error(),
		})
	case grant != nil:
		obs.CountWebhookEvent(evt.Event, "ok")
		resp["download_url"] = grant.URL
		resp["expires_at"] = grant.ExpiresAt.UTC().Format(time.RFC3339)
		_ = audit.LogEvent(r.Context(), "download.granted", map[string]any{
			"expires_at": grant.ExpiresAt.UTC().Format(time.RFC3339),
		})
	default:
		obs.CountWebhookEvent(evt.Event, "ok")
	}

	writeJSON(w, http.StatusOK, resp)
}
