package pipeline

// State identifies where a pipeline run currently is. Runs move
// strictly forward except for the bounded return to StateGenerating on
// repair, and may drop to StateAborted from anywhere.
type State string

const (
	StateStart          State = "start"
	StateRetrieving     State = "retrieving"
	StateGenerating     State = "generating"
	StateExtracting     State = "extracting"
	StateSchemaLoading  State = "schema_loading"
	StateEvaluating     State = "evaluating"
	StateSafetyChecking State = "safety_checking"
	StateExecuting      State = "executing"
	StateLearning       State = "learning"
	StateDone           State = "done"
	StateAborted        State = "aborted"
)

func (s State) String() string {
	return string(s)
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}
