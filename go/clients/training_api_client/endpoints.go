package training_api_client

const (
	// Base URL
	DefaultBaseURL = "http://localhost:8080"

	// Lesson endpoints, formatted with the lesson id
	LessonTimerStateEndpoint = "/lessons/%s/timer-state"
	LessonStartEndpoint      = "/lessons/%s/start"
	LessonPauseEndpoint      = "/lessons/%s/pause"
	LessonResumeEndpoint     = "/lessons/%s/resume"
	LessonFinishEndpoint     = "/lessons/%s/finish"

	// Challenge endpoints
	ChallengeSubmitSummaryEndpoint = "/challenges/submit/summary"
	ChallengeEndpoint              = "/challenges/%s"

	// Gateway websocket endpoint
	LessonEventsEndpoint = "/ws/lesson"

	// Query parameters
	UserIDParam         = "user_id"
	TrainingPlanIDParam = "training_plan_id"
	LessonIDParam       = "lesson_id"

	// Headers
	AuthorizationHeader = "Authorization"
)
