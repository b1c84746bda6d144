package config

type WorkerKeyStruct struct {
	TouchAttemptQueue string
}

var WorkerKey = &WorkerKeyStruct{
	TouchAttemptQueue: "touch_attempt_queue",
}
