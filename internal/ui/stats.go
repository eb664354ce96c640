package ui

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/brogergvhs/mangapark-dl/internal/util"
)

// Stats accumulates page counts across chapters for the end-of-run summary.
type Stats struct {
	TotalChapters atomic.Int64
	TotalImages   atomic.Int64
	FailedImages  atomic.Int64
	TotalBytes    atomic.Int64
}

func (s *Stats) Summary(elapsed time.Duration) string {
	return fmt.Sprintf("Download summary: %d chapter(s), %d pages (%d failed), %s in %s",
		s.TotalChapters.Load(),
		s.TotalImages.Load(),
		s.FailedImages.Load(),
		util.Human(s.TotalBytes.Load()),
		elapsed.Round(time.Second),
	)
}
