package mercadopago

import "github.com/resellerdesk/resellerdesk/internal/types"

// PaymentResponse is the subset of GET /v1/payments/{id} the ledger needs
type PaymentResponse struct {
	ID                int64  `json:"id"`
	Status            string `json:"status"`
	StatusDetail      string `json:"status_detail"`
	ExternalReference string `json:"external_reference"`
}

// Provider payment statuses
const (
	StatusPending     = "pending"
	StatusApproved    = "approved"
	StatusAuthorized  = "authorized"
	StatusInProcess   = "in_process"
	StatusInMediation = "in_mediation"
	StatusRejected    = "rejected"
	StatusCancelled   = "cancelled"
	StatusRefunded    = "refunded"
	StatusChargedBack = "charged_back"
)

var statusMap = map[string]types.ApprovalStatus{
	StatusPending:     types.ApprovalStatusPending,
	StatusApproved:    types.ApprovalStatusApproved,
	StatusAuthorized:  types.ApprovalStatusProcessing,
	StatusInProcess:   types.ApprovalStatusProcessing,
	StatusInMediation: types.ApprovalStatusProcessing,
	StatusRejected:    types.ApprovalStatusRejected,
	StatusCancelled:   types.ApprovalStatusCancelled,
	StatusRefunded:    types.ApprovalStatusRefunded,
	StatusChargedBack: types.ApprovalStatusChargedBack,
}

// ApprovalStatus maps the provider status onto the ledger enum.
// ok is false for empty or unknown statuses.
func (r *PaymentResponse) ApprovalStatus() (types.ApprovalStatus, bool) {
	status, ok := statusMap[r.Status]
	return status, ok
}
