package prompt

// Kind is the closed set of requests that produce a user turn: FixCommand,
// SuggestFromText, AdditionalInstructions and ReceivedContext.
type Kind interface {
	// Status is the line shown to the user while the model is asked.
	Status() string
	isKind()
}

// FixCommand asks for a fix of the last failed shell command.
type FixCommand struct{}

// SuggestFromText asks for a command that achieves a free-text goal.
type SuggestFromText struct {
	Goal string
}

// AdditionalInstructions feeds user text back after a suggestion list was
// neither selected from nor rejected.
type AdditionalInstructions struct {
	Text string
}

// ReceivedContext continues the task after a context-request command ran.
type ReceivedContext struct{}

func (FixCommand) Status() string             { return "🤖 Attempting to fix the last command..." }
func (SuggestFromText) Status() string        { return "🤖 Generating suggestions based on the provided query..." }
func (AdditionalInstructions) Status() string { return "🤖 Considering the additional instructions..." }
func (ReceivedContext) Status() string        { return "🤖 Analyzing the context..." }

func (FixCommand) isKind()             {}
func (SuggestFromText) isKind()        {}
func (AdditionalInstructions) isKind() {}
func (ReceivedContext) isKind()        {}
