package config

type WorkerKeyStruct struct {
	PersistAnswersQueue string
	GradeEssaysQueue    string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue: "persist_answers_queue",
	GradeEssaysQueue:    "grade_essays_queue",
}
