package common

import (
	"context"
	"io"

	"resumeflow/internal/errors"
)

// StageOperationFunc produces the value a command prints.
type StageOperationFunc[Output any] func(context.Context) (Output, error)

// RunStageCommand runs op and writes its result through the formatter
// registry to w or to the configured output file.
func RunStageCommand[Output any](
	ctx context.Context,
	w io.Writer,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	op StageOperationFunc[Output],
) error {
	result, err := op(ctx)
	if err != nil {
		return err
	}
	return NewOutputHandlerTo(w, logger).HandleOutput(result, cmdConfig)
}

// CreateInputFunc builds a command input from file contents.
type CreateInputFunc[Input any] func(contents []string) (Input, error)

// ReadInput validates and reads files, then converts them with createInput.
func ReadInput[Input any](
	logger *errors.Logger,
	maxFileSize int64,
	files []string,
	createInput CreateInputFunc[Input],
) (Input, error) {
	var zero Input
	contents, err := NewFileProcessor(logger).WithMaxFileSize(maxFileSize).ValidateAndReadFiles(files...)
	if err != nil {
		return zero, err
	}
	in, err := createInput(contents)
	if err != nil {
		return zero, errors.NewValidationError(errors.ErrCodeInvalidRequest, "failed to create input from file contents", err)
	}
	return in, nil
}
