package api

import "cetcompare/internal/compare"

// ErrorBody is written for every failed request.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// BranchesRequest asks for the branches offered across colleges.
type BranchesRequest struct {
	CollegeCodes []string `json:"college_codes"`
}

// CollegesResponse is the body of GET /compare/colleges.
type CollegesResponse struct {
	Success  bool              `json:"success"`
	Colleges []compare.College `json:"colleges"`
	Count    int               `json:"count"`
}

// BranchesResponse is the body of POST /compare/branches.
type BranchesResponse struct {
	Success  bool             `json:"success"`
	Branches []compare.Branch `json:"branches"`
	Count    int              `json:"count"`
}

// CompareResponse is the body of a successful POST /compare/compare.
type CompareResponse struct {
	Success bool                      `json:"success"`
	Data    *compare.ComparisonResult `json:"data"`
}

// DataStats describes the loaded cutoff dataset.
type DataStats struct {
	TotalRecords   int   `json:"total_records"`
	YearsAvailable []int `json:"years_available"`
	TotalColleges  int   `json:"total_colleges"`
	TotalBranches  int   `json:"total_branches"`
}

// CompareHealth is the body of GET /compare/health.
type CompareHealth struct {
	Status           string     `json:"status"`
	ServiceAvailable bool       `json:"service_available"`
	DataStats        *DataStats `json:"data_stats,omitempty"`
}

// Health is the body of GET /health.
type Health struct {
	Status              string `json:"status"`
	Message             string `json:"message"`
	ComparisonAvailable bool   `json:"comparison_available"`
	ChatAvailable       bool   `json:"chat_available"`
}

// Exchange is one prior user/assistant turn.
type Exchange struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message        string     `json:"message"`
	History        []Exchange `json:"history,omitempty"`
	ConversationID string     `json:"conversation_id,omitempty"`
}

// ChatResponse is the body of POST /chat.
type ChatResponse struct {
	Success        bool   `json:"success"`
	Response       string `json:"response"`
	Service        string `json:"service"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ChatStatus is the body of GET /chat/status.
type ChatStatus struct {
	Success   bool   `json:"success"`
	Available bool   `json:"available"`
	Service   string `json:"service"`
}

// ClearChatRequest is the body of POST /chat/clear.
type ClearChatRequest struct {
	ConversationID string `json:"conversation_id"`
}
