package cache

import "slices"

// TaskKey is the key of a single task.
func TaskKey(taskID string) string {
	return "task:" + taskID
}

// UserTasksKey is the key of every task visible to a user.
func UserTasksKey(userID string) string {
	return "tasks:" + userID
}

// AssignedTasksKey is the key of the tasks assigned to a user.
func AssignedTasksKey(userID string) string {
	return "assignedTasks:" + userID
}

// HistoryKey is the key of a user's finished tasks.
func HistoryKey(userID string) string {
	return "history:" + userID
}

// UserKeys returns every per-user key of userID.
func UserKeys(userID string) []string {
	return []string{UserTasksKey(userID), AssignedTasksKey(userID), HistoryKey(userID)}
}

// InvalidationSet returns the keys a mutation of taskID must clear: the task
// key plus the per-user keys of every user in the given groups. The result
// has no duplicates and is sorted after the task key.
func InvalidationSet(taskID string, users ...[]string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, group := range users {
		for _, id := range group {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	keys := make([]string, 0, 1+3*len(ids))
	keys = append(keys, TaskKey(taskID))
	for _, id := range ids {
		keys = append(keys, UserKeys(id)...)
	}
	return keys
}
