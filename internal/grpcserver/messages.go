package grpcserver

// ResolveRequest asks for the record stored under a short key.
type ResolveRequest struct {
	ShortKey string `json:"short_key"`
}

// ResolveResponse carries the resolved record.
type ResolveResponse struct {
	LongURL     string `json:"long_url"`
	OwnerUserID string `json:"owner_user_id"`
}

// StatsRequest is empty; the method takes no arguments.
type StatsRequest struct{}

// StatsResponse carries the service-wide counters.
type StatsResponse struct {
	Urls  int64 `json:"urls"`
	Users int64 `json:"users"`
}
