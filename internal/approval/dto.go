package approval

// ActionDTO is the payload of POST /approvals/{id}.
type ActionDTO struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

type PendingResponse struct {
	Approvals []*PendingItem `json:"approvals"`
}
