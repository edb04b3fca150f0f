package models

import "time"

type AlertType string

const (
	AlertTypeInfo    AlertType = "info"
	AlertTypeWarning AlertType = "warning"
	AlertTypeUrgent  AlertType = "urgent"
	AlertTypeRequest AlertType = "request"
)

func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeInfo, AlertTypeWarning, AlertTypeUrgent, AlertTypeRequest:
		return true
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Alert is a cross-department notification. FromDepartment and
// ToDepartments never change after creation; Responses only grow.
type Alert struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Type           AlertType        `json:"type"`
	FromDepartment string           `json:"fromDepartment"`
	ToDepartments  []string         `json:"toDepartments"`
	Priority       Priority         `json:"priority"`
	Status         Status           `json:"status"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	Responses      []AlertResponse  `json:"responses"`
	Files          []FileAttachment `json:"files,omitempty"`
}

// VisibleTo reports whether the department is the sender or a listed recipient.
func (a Alert) VisibleTo(departmentID string) bool {
	return a.FromDepartment == departmentID || a.IsRecipient(departmentID)
}

func (a Alert) IsRecipient(departmentID string) bool {
	for _, d := range a.ToDepartments {
		if d == departmentID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share slices with a store.
func (a Alert) Clone() Alert {
	out := a
	if a.ToDepartments != nil {
		out.ToDepartments = append([]string{}, a.ToDepartments...)
	}
	out.Files = cloneFiles(a.Files)
	if a.Responses != nil {
		out.Responses = make([]AlertResponse, len(a.Responses))
		for i, r := range a.Responses {
			r.Files = cloneFiles(r.Files)
			out.Responses[i] = r
		}
	}
	return out
}

type AlertResponse struct {
	ID             string           `json:"id"`
	AlertID        string           `json:"alertId"`
	FromDepartment string           `json:"fromDepartment"`
	Message        string           `json:"message"`
	Observation    string           `json:"observation,omitempty"`
	Responsible    string           `json:"responsible"`
	Files          []FileAttachment `json:"files,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// AlertUpdate is a partial update. Nil fields are left untouched and
// Responses are appended to the existing thread. Event, when set, is
// applied after Status.
type AlertUpdate struct {
	Title       *string
	Description *string
	Type        *AlertType
	Priority    *Priority
	Status      *Status
	Event       Event
	Responses   []AlertResponse
}

type AlertMetrics struct {
	Total      int `json:"total"`
	Sent       int `json:"sent"`
	Received   int `json:"received"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
}
