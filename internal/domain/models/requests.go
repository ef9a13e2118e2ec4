package models

// Requests for the operational HTTP endpoints.

type LatestSignalRequest struct {
	Category string `query:"category" json:"category" validate:"required,oneof=crypto forex stocks"`
}

type RunWorkflowRequest struct {
	Category string `json:"category" validate:"required,oneof=crypto forex stocks"`
	Date     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	TimeSlot string `json:"time_slot" validate:"omitempty,datetime=15:04"`
	Cron     string `json:"cron" default:"manual"`
}
