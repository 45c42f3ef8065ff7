package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	votesCastTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "possumbly_votes_cast_total",
		Help: "Votes cast or changed through the API.",
	})
	invitesRedeemedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "possumbly_invites_redeemed_total",
		Help: "Successful invite redemptions.",
	})
	templateUploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "possumbly_template_uploads_total",
		Help: "Accepted template uploads.",
	})
	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "possumbly_rate_limited_total",
		Help: "Requests rejected by a rate-limit group.",
	})
)
