package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CheckinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altrii_mdm_checkins_total",
			Help: "Total check-in messages by kind and result",
		},
		[]string{"kind", "result"},
	)

	CommandsEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "altrii_mdm_commands_enqueued_total",
			Help: "Total commands enqueued",
		},
	)

	CommandsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altrii_mdm_commands_completed_total",
			Help: "Total commands reaching a terminal state, by result",
		},
		[]string{"result"},
	)

	WakeDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altrii_mdm_wake_dispatches_total",
			Help: "Total wake-push dispatches by result",
		},
		[]string{"result"},
	)

	ProfilesBuilt = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "altrii_mdm_profiles_built_total",
			Help: "Total supervision profiles built",
		},
	)

	EnrollmentResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altrii_mdm_enrollment_resolutions_total",
			Help: "Total enrollment code resolutions by result",
		},
		[]string{"result"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "altrii_mdm_sessions_active",
			Help: "Number of live device sessions",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CheckinsTotal,
		CommandsEnqueued,
		CommandsCompleted,
		WakeDispatches,
		ProfilesBuilt,
		EnrollmentResolutions,
		SessionsActive,
	)
}
