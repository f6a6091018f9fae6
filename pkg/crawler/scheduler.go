package crawler

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"webrag/pkg/models"
	"webrag/pkg/utils"
)

// Scheduler fans a batch of URL fetches out over the page source with
// bounded concurrency.
type Scheduler struct {
	source      PageSource
	maxInFlight int64
	log         *logrus.Entry
}

// NewScheduler creates a Scheduler allowing maxInFlight concurrent fetches
func NewScheduler(source PageSource, maxInFlight int, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		source:      source,
		maxInFlight: int64(maxInFlight),
		log:         log,
	}
}

// FetchAll fetches every URL concurrently and returns the records of the
// ones that succeeded, in completion order. Callers must not expect result
// order to match the input list. A failed URL is logged with its category
// and dropped from the results; it never cancels sibling fetches and is
// not retried at this layer.
func (s *Scheduler) FetchAll(ctx context.Context, urls []string) []models.PageRecord {
	if len(urls) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(s.maxInFlight)
	results := make(chan *models.PageRecord, len(urls))
	var wg sync.WaitGroup

	total := len(urls)
	for i, pageURL := range urls {
		if acqErr := sem.Acquire(ctx, 1); acqErr != nil {
			s.log.Warnf("Fetch batch stopped while waiting for a slot: %v", acqErr)
			break
		}

		wg.Add(1)
		go func(index int, pageURL string) {
			defer wg.Done()
			defer sem.Release(1)

			taskLog := s.log.WithField("url", pageURL)
			defer func() {
				if r := recover(); r != nil {
					taskLog.WithFields(logrus.Fields{
						"panic_info":  r,
						"stack_trace": string(debug.Stack()),
					}).Error("PANIC recovered in fetch task")
				}
			}()
			taskLog.Infof("URL: %d/%d", index+1, total)

			record, fetchErr := s.source.FetchPage(ctx, pageURL)
			if fetchErr != nil {
				taskLog.WithField("error_category", utils.CategorizeError(fetchErr)).
					Warnf("Error crawling %s: %v", pageURL, fetchErr)
				return
			}
			results <- record
		}(i, pageURL)
	}

	wg.Wait()
	close(results)

	records := make([]models.PageRecord, 0, total)
	for record := range results {
		records = append(records, *record)
	}
	s.log.Infof("Fetched %d/%d URLs", len(records), total)
	return records
}
