package ports

import "time"

type Metrics interface {
	FetchCompleted(outcome string, elapsed time.Duration)
	StaleDiscarded()
	CacheLookup(hit bool)
	PageRendered(page, outcome string)
}
