package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"epcbooks.org/internal/download"
	"epcbooks.org/internal/monitor"
	"epcbooks.org/internal/obs"
	"epcbooks.org/internal/webhook"
)

// Gateway event types the orchestrator acts on.
const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

// referencePrefix tags every generated payment reference.
const referencePrefix = "EPC_"

var (
	ErrInvalidEmail     = errors.New("a valid email address is required")
	ErrInvalidAmount    = errors.New("amount must be a positive integer in minor units")
	ErrInvalidReference = errors.New("reference must be 6-64 alphanumeric or underscore characters")
	// ErrLocked means the identity reached the failed-attempt threshold and
	// must wait for the next scheduled reset.
	ErrLocked = errors.New("payment attempts temporarily blocked for this customer")
)

// ChargeData is the subset of the charge.success payload the service acts on.
type ChargeData struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
	Metadata struct {
		Format string `json:"format"`
		FileID string `json:"file_id"`
	} `json:"metadata"`
}

// Orchestrator coordinates charge initiation and webhook outcomes.
type Orchestrator struct {
	gateway   Gateway
	tracker   *monitor.Tracker
	downloads *download.Service
}

// NewOrchestrator wires the gateway client, failure tracker and download service.
func NewOrchestrator(gateway Gateway, tracker *monitor.Tracker, downloads *download.Service) *Orchestrator {
	return &Orchestrator{gateway: gateway, tracker: tracker, downloads: downloads}
}

// NewReference generates a unique payment reference.
func NewReference() string {
	return referencePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Initiate validates the request, applies the lockout policy, and forwards
// the charge to the gateway. The gateway response is returned verbatim.
func (o *Orchestrator) Initiate(ctx context.Context, email string, amount int64, reference string) (json.RawMessage, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		reference = NewReference()
	} else if !validReference(reference) {
		return nil, ErrInvalidReference
	}
	if o.tracker.Locked(email) {
		return nil, ErrLocked
	}

	return o.gateway.Initialize(ctx, InitRequest{
		Email:     email,
		Amount:    amount,
		Reference: reference,
	})
}

// HandleEvent processes an authenticated webhook event. charge.success
// clears the customer's failure counter and, for digital purchases, issues
// a download capability. charge.failed increments the counter. Every other
// event type is acknowledged untouched.
func (o *Orchestrator) HandleEvent(ctx context.Context, evt webhook.Event) (*download.Grant, error) {
	switch evt.Event {
	case EventChargeSuccess:
	case EventChargeFailed:
		var data ChargeData
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return nil, fmt.Errorf("decode charge data: %w", err)
		}
		if email := strings.TrimSpace(data.Customer.Email); email != "" {
			count := o.HandleFailure(email)
			obs.Log("info", "charge_failed_recorded", map[string]any{"attempts": count})
		}
		return nil, nil
	default:
		obs.Log("info", "webhook_event_ignored", map[string]any{"event": evt.Event})
		return nil, nil
	}

	var data ChargeData
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		return nil, fmt.Errorf("decode charge data: %w", err)
	}
	email := strings.TrimSpace(data.Customer.Email)
	if email != "" {
		o.tracker.RecordSuccess(email)
	}

	if data.Metadata.Format != "digital" || data.Metadata.FileID == "" {
		return nil, nil
	}
	grant, err := o.downloads.Issue(data.Metadata.FileID, 0)
	if err != nil {
		return nil, fmt.Errorf("issue download for %s: %w", data.Reference, err)
	}
	return &grant, nil
}

// HandleFailure records a failed verification for the identity and returns
// the new consecutive-failure count.
func (o *Orchestrator) HandleFailure(identity string) int {
	return o.tracker.RecordFailure(identity)
}

func validReference(ref string) bool {
	if len(ref) < 6 || len(ref) > 64 {
		return false
	}
	for _, r := range ref {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}
