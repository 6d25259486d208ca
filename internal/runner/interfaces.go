package runner

import "context"

// Gate abstracts the stepper for testing
type Gate interface {
	Next(ctx context.Context, message string) error
	AwaitPending(ctx context.Context) error
	ScenarioBoundary()
	Shutdown() error
}

// Reporter abstracts the progress reporter for testing
type Reporter interface {
	ScenarioStarted(name string)
	ScenarioSkipped(name string)
	StepStarted(name string)
	StepSkipped(name string)
	ResetEvents()
}
