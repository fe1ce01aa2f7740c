package models

// Service is an entry of the static service catalog.
type Service struct {
	ID           string  `json:"id"`
	ServiceName  string  `json:"serviceName"`
	Category     string  `json:"category"`
	Pricing      string  `json:"pricing"`
	Duration     string  `json:"duration,omitempty"`
	Counselor    string  `json:"counselor"`
	Rating       float64 `json:"rating"`
	Description  string  `json:"description,omitempty"`
	Image        string  `json:"image,omitempty"`
	CounselorBio string  `json:"counselorBio,omitempty"`
}
