package config

type WorkerKeyStruct struct {
	PersistResultsQueue  string
	IntegrityEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistResultsQueue:  "persist_results_queue",
	IntegrityEventsQueue: "integrity_events_queue",
}
