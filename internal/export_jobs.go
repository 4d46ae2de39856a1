package internal

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
)

// ExportJobs tracks running export jobs. While any job is active,
// conversions run in export mode.
type ExportJobs struct {
	mu   sync.Mutex
	jobs map[string]struct{}
}

var _ pim.ExportFlag = (*ExportJobs)(nil)

func NewExportJobs() *ExportJobs {
	return &ExportJobs{jobs: make(map[string]struct{})}
}

// Begin registers a new job and returns its id.
func (j *ExportJobs) Begin() string {
	id := uuid.NewString()
	j.mu.Lock()
	j.jobs[id] = struct{}{}
	j.mu.Unlock()
	zap.S().Debugw("export job started", "jobId", id)
	return id
}

// End removes the job. Unknown ids are ignored.
func (j *ExportJobs) End(id string) {
	j.mu.Lock()
	delete(j.jobs, id)
	j.mu.Unlock()
	zap.S().Debugw("export job finished", "jobId", id)
}

// Active returns the ids of running jobs, sorted.
func (j *ExportJobs) Active() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	ids := make([]string, 0, len(j.jobs))
	for id := range j.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (j *ExportJobs) IsExportActive() bool {
	if j == nil {
		return false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.jobs) > 0
}
