package jobs

// Queue names
const (
	QueueAIJobs        = "ai-jobs"
	QueueNotifications = "notifications"
	QueueMaintenance   = "maintenance"
)

// Queues lists every queue the worker consumes.
var Queues = []string{QueueAIJobs, QueueNotifications, QueueMaintenance}

// ai-jobs
const (
	JobGeneratePlan       = "generatePlan"
	JobGenerateDailyTasks = "generateDailyTasks"
	JobMentorFeedback     = "mentorFeedback"
	JobEvaluateTask       = "evaluateTask"
)

// maintenance
const (
	JobResetDailyTokens             = "resetDailyTokens"
	JobMarkMissedTasks              = "markMissedTasks"
	JobAggregateStreaks             = "aggregateStreaks"
	JobGenerateDailyTasksForAll     = "generateDailyTasksForAll"
	JobGenerateWeeklyMentorFeedback = "generateWeeklyMentorFeedback"
	JobCleanupOldData               = "cleanupOldData"
)

// MaintenanceJobs lists the maintenance job names in schedule order.
var MaintenanceJobs = []string{
	JobResetDailyTokens,
	JobMarkMissedTasks,
	JobAggregateStreaks,
	JobGenerateDailyTasksForAll,
	JobGenerateWeeklyMentorFeedback,
	JobCleanupOldData,
}

// notifications
const JobSend = "send"

// Priorities on the ai-jobs queue. Lower runs first.
const (
	PriorityPlan       = 1
	PriorityDailyTasks = 2
	PriorityMentor     = 3
	PriorityEvaluate   = 4
)
