package pipeline

import (
	"civic-issues/classifier"
	"civic-issues/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Stage is a state of the submission state machine.
type Stage string

const (
	ValidatingInput Stage = "validating_input"
	UploadingMedia  Stage = "uploading_media"
	Classifying     Stage = "classifying"
	Persisting      Stage = "persisting"
	Done            Stage = "done"
	Failed          Stage = "failed"
)

var stageMessages = map[Stage]string{
	ValidatingInput: "Validating report...",
	UploadingMedia:  "Uploading media...",
	Classifying:     "Analyzing issue...",
	Persisting:      "Saving report...",
	Done:            "Report submitted.",
	Failed:          "Report not submitted.",
}

// Kind classifies a terminal failure.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindUpload      Kind = "upload_error"
	KindPersistence Kind = "persistence_error"
	KindCancelled   Kind = "cancelled"
)

type NoticeLevel string

const NoticeInfo NoticeLevel = "info"

// Notice is a non-blocking message surfaced next to the outcome.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Progress is reported once per stage entered.
type Progress struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// State carries everything accumulated so far. It is passed by value from
// stage to stage, so a failure always reports exactly the partial results
// that exist, e.g. an uploaded media URL without a created issue.
type State struct {
	Stage          Stage
	Actor          models.Actor
	Draft          models.Draft
	MediaURL       string
	Classification classifier.Result
	Notices        []Notice
	IssueID        primitive.ObjectID
	Issue          models.Issue
}

// Failure is the structured {stage, kind, message} outcome of a failed submission.
type Failure struct {
	Stage    Stage                   `json:"stage"`
	Kind     Kind                    `json:"kind"`
	Message  string                  `json:"message"`
	Fields   models.ValidationErrors `json:"fields,omitempty"`
	MediaURL string                  `json:"mediaUrl,omitempty"`
	Err      error                   `json:"-"`
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return string(f.Kind) + " at " + string(f.Stage) + ": " + f.Err.Error()
	}
	return string(f.Kind) + " at " + string(f.Stage)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Result is the terminal outcome of Submit.
type Result struct {
	Stage   Stage              `json:"stage"`
	IssueID primitive.ObjectID `json:"issueId,omitempty"`
	Issue   *models.Issue      `json:"issue,omitempty"`
	Notices []Notice           `json:"notices,omitempty"`
	Failure *Failure           `json:"failure,omitempty"`
}

func (r Result) OK() bool {
	return r.Stage == Done && r.Failure == nil
}

// Message is the single user-facing message for the outcome.
func (r Result) Message() string {
	if r.OK() && r.Issue != nil {
		return "Issue submitted successfully! It was rated " + string(r.Issue.Severity) + " severity."
	}
	if r.Failure == nil {
		return "Report not submitted."
	}

	switch r.Failure.Kind {
	case KindValidation:
		return "Please correct the highlighted fields and submit again."
	case KindUpload:
		return "Your media could not be uploaded, so the report was not saved. Please try again."
	case KindPersistence:
		if r.Failure.MediaURL != "" {
			return "Your media was uploaded but the report could not be saved. Please retry; the uploaded file may need to be reconciled manually."
		}
		return "The report could not be saved. Please try again."
	case KindCancelled:
		if r.Failure.MediaURL != "" {
			return "Submission cancelled after the media was uploaded; no report was saved."
		}
		return "Submission cancelled; no report was saved."
	default:
		return "Report not submitted."
	}
}
