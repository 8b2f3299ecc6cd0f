package domain

import "errors"

var (
	// ErrPaperNotFound is returned when the processing backend does not know the paper.
	ErrPaperNotFound = errors.New("paper not found")
	// ErrQuestionNotFound indicates a question ID that is not part of the open paper.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrWorkspaceClosed is returned for actions on, or results arriving after, a closed workspace.
	ErrWorkspaceClosed = errors.New("workspace closed")
	// ErrWorkspaceNotFound indicates an unknown workspace ID.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrProcessingStalled is surfaced when polling gives up on a paper that makes no progress.
	ErrProcessingStalled = errors.New("paper processing stalled")
)
