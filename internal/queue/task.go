package queue

type TaskType string

const (
	TaskTypeInterviewCompleted TaskType = "interview_completed"
)
