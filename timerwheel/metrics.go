package timerwheel

import (
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
)

var (
	mScheduled = stats.Int64("shmtimer/timers_scheduled",
		"Timers accepted by Schedule", stats.UnitDimensionless)
	mCanceled = stats.Int64("shmtimer/timers_canceled",
		"Timers removed by Cancel", stats.UnitDimensionless)
	mFired = stats.Int64("shmtimer/timers_fired",
		"Timeout callbacks invoked by Advance", stats.UnitDimensionless)
	mExhausted = stats.Int64("shmtimer/timers_exhausted",
		"Timers released after reaching their fire budget", stats.UnitDimensionless)
	mChainBreaks = stats.Int64("shmtimer/bucket_chain_breaks",
		"Bucket traversals abandoned because a callback freed the latched next node", stats.UnitDimensionless)
)

// DefaultViews are the engine's OpenCensus views. Hosts that want the
// counters exported register these once at startup.
var DefaultViews = []*view.View{
	{Name: "shmtimer/timers_scheduled", Measure: mScheduled, Description: mScheduled.Description(), Aggregation: view.Count()},
	{Name: "shmtimer/timers_canceled", Measure: mCanceled, Description: mCanceled.Description(), Aggregation: view.Count()},
	{Name: "shmtimer/timers_fired", Measure: mFired, Description: mFired.Description(), Aggregation: view.Count()},
	{Name: "shmtimer/timers_exhausted", Measure: mExhausted, Description: mExhausted.Description(), Aggregation: view.Count()},
	{Name: "shmtimer/bucket_chain_breaks", Measure: mChainBreaks, Description: mChainBreaks.Description(), Aggregation: view.Count()},
}
