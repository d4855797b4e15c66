package ratelimit

import "time"

// Policy is a named request budget per window.
type Policy struct {
	Name        string
	MaxRequests int
	Window      time.Duration
}

// Endpoint class policies.
var (
	PolicyAuth        = Policy{Name: "auth", MaxRequests: 5, Window: time.Hour}
	PolicyMediaUpload = Policy{Name: "media_upload", MaxRequests: 80, Window: 5 * time.Minute}
	PolicyPostCreate  = Policy{Name: "post_create", MaxRequests: 50, Window: 15 * time.Minute}
	PolicyBilling     = Policy{Name: "billing", MaxRequests: 10, Window: 30 * time.Minute}
	PolicyDefault     = Policy{Name: "default", MaxRequests: 100, Window: 15 * time.Minute}
)

// Policies lists every built-in policy.
var Policies = []Policy{
	PolicyAuth,
	PolicyMediaUpload,
	PolicyPostCreate,
	PolicyBilling,
	PolicyDefault,
}

// Key builds the counter key for subject under this policy, so that
// different policies never share a counter.
func (p Policy) Key(subject string) string {
	return p.Name + ":" + subject
}
