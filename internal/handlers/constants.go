package handlers

// Common error message constants shared across handlers
const (
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgUnauthorized       = "Unauthorized"
	ErrMsgPermissionDenied   = "Permission denied"
	ErrMsgNotFound           = "Not found"
	ErrMsgInternal           = "Internal server error"
	ErrMsgNoWorkAvailable    = "No work available"
)

// AssignmentRequestsPath is where reviewers file a request when no work
// is available
const AssignmentRequestsPath = "/api/v1/assignment-requests"

// Audit action constants
const (
	AuditActionAssignDirect     = "assignment.assign_direct"
	AuditActionReclaim          = "assignment.reclaim"
	AuditActionRequestResolve   = "assignment_request.resolve"
	AuditActionReviewerRegister = "reviewer.register"
	AuditActionReviewerSuspend  = "reviewer.suspend"
	AuditActionReviewerActivate = "reviewer.reactivate"
	AuditActionProposalPublish  = "proposal.publish"
)
