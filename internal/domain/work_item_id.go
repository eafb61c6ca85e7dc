package domain

// WorkItemID identifies a single schedulable work item within a plan.
type WorkItemID string

// NewWorkItemID creates a new WorkItemID value object with validation
func NewWorkItemID(value string) (WorkItemID, error) {
	id := WorkItemID(value)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks if the work item ID is valid
func (w WorkItemID) Validate() error {
	return validateIdentifier("work item ID", string(w))
}

// String returns the string representation
func (w WorkItemID) String() string {
	return string(w)
}
