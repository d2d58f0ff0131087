package papi

// Wire types for the Property Manager API. Only the fields the deployer
// reads are modeled; raw response bodies are kept alongside for audit.

type searchRequest struct {
	PropertyName string `json:"propertyName"`
}

type searchVersionItem struct {
	PropertyID       string `json:"propertyId"`
	PropertyName     string `json:"propertyName"`
	PropertyVersion  int    `json:"propertyVersion"`
	StagingStatus    string `json:"stagingStatus"`
	ProductionStatus string `json:"productionStatus"`
}

type searchResponse struct {
	Versions struct {
		Items []searchVersionItem `json:"items"`
	} `json:"versions"`
}

type versionItem struct {
	PropertyVersion  int    `json:"propertyVersion"`
	StagingStatus    string `json:"stagingStatus"`
	ProductionStatus string `json:"productionStatus"`
	Note             string `json:"note"`
}

type versionsResponse struct {
	PropertyID string `json:"propertyId"`
	Versions   struct {
		Items []versionItem `json:"items"`
	} `json:"versions"`
}

type createVersionRequest struct {
	CreateFromVersion int `json:"createFromVersion"`
}

type createVersionResponse struct {
	VersionLink string `json:"versionLink"`
}

type activationRequest struct {
	PropertyVersion        int      `json:"propertyVersion"`
	Network                string   `json:"network"`
	Note                   string   `json:"note"`
	NotifyEmails           []string `json:"notifyEmails"`
	AcknowledgeAllWarnings bool     `json:"acknowledgeAllWarnings"`
}

type createActivationResponse struct {
	ActivationLink string `json:"activationLink"`
}

type activationItem struct {
	ActivationID    string `json:"activationId"`
	PropertyVersion int    `json:"propertyVersion"`
	Network         string `json:"network"`
	Status          string `json:"status"`
	Note            string `json:"note"`
	FatalError      string `json:"fatalError"`
}

type activationsResponse struct {
	Activations struct {
		Items []activationItem `json:"items"`
	} `json:"activations"`
}

// apiProblem is the remote system's RFC 7807 style error body.
type apiProblem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}
