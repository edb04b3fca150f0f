package models

import "time"

// NotificationsFeature is the partition where a department logs its own
// responses to alerts.
const NotificationsFeature = "notifications"

type FeatureRecord struct {
	ID                string           `json:"id"`
	DepartmentID      string           `json:"departmentId"`
	FeatureID         string           `json:"featureId"`
	Fields            map[string]any   `json:"fields,omitempty"`
	Priority          Priority         `json:"priority,omitempty"`
	Status            Status           `json:"status,omitempty"`
	Responsible       string           `json:"responsible,omitempty"`
	Description       string           `json:"description,omitempty"`
	NotifyDepartments []string         `json:"notifyDepartments,omitempty"`
	AlertID           string           `json:"alertId,omitempty"`
	Message           string           `json:"message,omitempty"`
	Observation       string           `json:"observation,omitempty"`
	Files             []FileAttachment `json:"files,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

func (r FeatureRecord) Clone() FeatureRecord {
	out := r
	if r.Fields != nil {
		out.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	out.NotifyDepartments = append([]string(nil), r.NotifyDepartments...)
	out.Files = cloneFiles(r.Files)
	return out
}

// PartitionKey is the literal "<departmentId>-<featureId>" used in snapshots.
func PartitionKey(departmentID, featureID string) string {
	return departmentID + "-" + featureID
}

type PriorityBreakdown struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

type FeatureMetrics struct {
	Total     int               `json:"total"`
	LastWeek  int               `json:"lastWeek"`
	LastMonth int               `json:"lastMonth"`
	Priority  PriorityBreakdown `json:"priority"`
}
