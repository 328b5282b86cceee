package dto

type ResolvePromotionRequest struct {
	Outcome string `json:"outcome"`
}

type PromotionRequestResponse struct {
	TraceID    string `json:"traceId"`
	RequestID  string `json:"requestId"`
	UserID     uint   `json:"userId"`
	Recipients []uint `json:"recipients"`
}

type PromotionDecisionResponse struct {
	TraceID     string `json:"traceId"`
	RequestID   string `json:"requestId"`
	RequesterID uint   `json:"requesterId"`
	Outcome     string `json:"outcome"`
	Copies      int    `json:"copies"`
}
