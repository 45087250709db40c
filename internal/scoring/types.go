// Package scoring is a client for the IS57 competition scoring backend.
package scoring

import "strconv"

// Team is a competing team.
type Team struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Building int    `json:"building"`
}

// Task is a scored assignment within a subject.
type Task struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
}

// TaskRef identifies the task a result belongs to.
type TaskRef struct {
	ID int64 `json:"id"`
}

// ResultEntry is one team's points for one task.
type ResultEntry struct {
	TaskInfo TaskRef `json:"taskInfo"`
	Result   int     `json:"result"`
}

// TeamResults holds every result recorded for a team.
type TeamResults struct {
	Results []ResultEntry `json:"results"`
}

// Results maps a team ID (as a decimal string) to its results.
type Results map[string]TeamResults

// Points returns the points a team scored for a task, or 0 when none are recorded.
func (r Results) Points(teamID, taskID int64) int {
	team, ok := r[strconv.FormatInt(teamID, 10)]
	if !ok {
		return 0
	}
	for _, entry := range team.Results {
		if entry.TaskInfo.ID == taskID {
			return entry.Result
		}
	}
	return 0
}
