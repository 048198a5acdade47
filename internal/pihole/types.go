package pihole

// InstanceConfig describes one independently addressable Pi-hole
// deployment. Immutable after startup; the URL is the identity key for
// session caching.
type InstanceConfig struct {
	Name     string
	URL      string
	Password string
}

// InstanceStatus is the result of a status fetch against one instance.
// A nil Blocking with a non-nil Error denotes an unreachable or failed
// instance; the numeric fields are zero in that case.
type InstanceStatus struct {
	Name           string  `json:"name"`
	URL            string  `json:"url"`
	Blocking       *bool   `json:"blocking"`
	Timer          int     `json:"timer"`
	TotalQueries   int64   `json:"total_queries"`
	BlockedQueries int64   `json:"blocked_queries"`
	PercentBlocked float64 `json:"percent_blocked"`
	Error          *string `json:"error"`
}

// InstanceActionResult is the result of a set-blocking call on one
// instance.
type InstanceActionResult struct {
	Name     string  `json:"name"`
	Blocking *bool   `json:"blocking"`
	Timer    int     `json:"timer"`
	Error    *string `json:"error"`
}

// --- Wire shapes of the Pi-hole v6 API ---

// authResponse is the body of POST /api/auth.
type authResponse struct {
	Session struct {
		Valid    bool   `json:"valid"`
		SID      string `json:"sid"`
		CSRF     string `json:"csrf"`
		Validity int    `json:"validity"`
	} `json:"session"`
}

// blockingResponse is the body of GET/POST /api/dns/blocking.
// The timer is null when no countdown is active.
type blockingResponse struct {
	Blocking string   `json:"blocking"`
	Timer    *float64 `json:"timer"`
}

// statsSummaryResponse is the relevant part of GET /api/stats/summary.
type statsSummaryResponse struct {
	Queries struct {
		Total          int64   `json:"total"`
		Blocked        int64   `json:"blocked"`
		PercentBlocked float64 `json:"percent_blocked"`
	} `json:"queries"`
}

func (b *blockingResponse) enabled() bool {
	return b.Blocking == "enabled"
}

func (b *blockingResponse) timerSeconds() int {
	if b.Timer == nil {
		return 0
	}
	return int(*b.Timer)
}
