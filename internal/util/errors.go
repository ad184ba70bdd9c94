package util

import "errors"

var (
	ErrSubmissionNotFound    = errors.New("submission not found")
	ErrEvaluationNotFound    = errors.New("evaluation not found")
	ErrRoadmapNotFound       = errors.New("roadmap not found")
	ErrAlreadyEvaluated      = errors.New("submission already evaluated")
	ErrEvaluationUnavailable = errors.New("evaluation service unavailable, please try again")
	ErrRoadmapUnavailable    = errors.New("roadmap generation unavailable, please try again")
	ErrNoTopics              = errors.New("no topics to evaluate")
	ErrNothingToRemediate    = errors.New("no incorrect questions, nothing to remediate")
	ErrProgressNotSaved      = errors.New("progress change may not be saved")
	ErrEvaluationRequired    = errors.New("improvement evaluation required before roadmap generation")
	ErrPermissionDenied      = errors.New("permission denied")
)
