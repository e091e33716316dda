package pipeline

// State is a step of the extraction state machine.
type State string

const (
	StateStart           State = "start"
	StateAuthenticating  State = "authenticating"
	StateOpeningModule   State = "opening_module"
	StateSelectingPeriod State = "selecting_period"
	StateDiscovering     State = "discovering_categories"
	StateExtracting      State = "extracting"
	StateOpenDetail      State = "open_detail"
	StateParseAndEnrich  State = "parse_and_enrich"
	StateReturnToSummary State = "return_to_summary"
	StateDeduping        State = "deduping"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
