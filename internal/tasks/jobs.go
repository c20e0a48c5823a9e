package tasks

import "almaconnector/internal/constants"

// Job describes a task that can be started on demand.
type Job struct {
	ID          string
	Title       string
	Description string
	Task        string
}

var jobs = []Job{
	{
		ID:          constants.TaskCreateAlmaRecords,
		Title:       "Create Alma Records",
		Description: "Create alma records",
		Task:        constants.TaskCreateAlmaRecords,
	},
	{
		ID:          constants.TaskUpdateRepositoryRecords,
		Title:       "Update Repository Records",
		Description: "Update repository records",
		Task:        constants.TaskUpdateRepositoryRecords,
	},
}

func Jobs() []Job {
	out := make([]Job, len(jobs))
	copy(out, jobs)
	return out
}

func FindJob(id string) (Job, bool) {
	for _, j := range jobs {
		if j.ID == id {
			return j, true
		}
	}
	return Job{}, false
}
