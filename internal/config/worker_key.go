package config

type WorkerKeyStruct struct {
	SubmissionEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	SubmissionEventsQueue: "practice_submission_events_queue",
}
