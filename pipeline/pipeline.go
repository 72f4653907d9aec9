// Package pipeline turns a draft report into a stored issue:
// validate, upload media, classify, persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civic-issues/blob"
	"civic-issues/classifier"
	"civic-issues/models"
	"civic-issues/store"

	log "github.com/sirupsen/logrus"
)

const fallbackNotice = "Automatic analysis was unavailable, so the report was filed with default severity."

// Pipeline holds only collaborators; every Submit call owns its own state.
type Pipeline struct {
	blobs      blob.Store
	classifier *classifier.Adapter
	issues     store.IssueStore
	rules      models.ValidationRules
	now        func() time.Time
}

type Option func(*Pipeline)

func WithRules(rules models.ValidationRules) Option {
	return func(p *Pipeline) { p.rules = rules }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(blobs blob.Store, adapter *classifier.Adapter, issues store.IssueStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		blobs:      blobs,
		classifier: adapter,
		issues:     issues,
		rules:      models.DefaultValidationRules(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type submitConfig struct {
	progress func(Progress)
}

type SubmitOption func(*submitConfig)

// WithProgress receives one update per stage entered, plus the terminal one.
func WithProgress(fn func(Progress)) SubmitOption {
	return func(c *submitConfig) { c.progress = fn }
}

func (c submitConfig) report(stage Stage) {
	if c.progress != nil {
		c.progress(Progress{Stage: stage, Message: stageMessages[stage]})
	}
}

// Submit runs the stages strictly in order. The caller may abandon the
// submission by cancelling ctx at any point before Persisting; once the
// create has started it runs to completion.
func (p *Pipeline) Submit(ctx context.Context, actor models.Actor, draft models.Draft, opts ...SubmitOption) Result {
	var cfg submitConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	state := State{
		Stage: ValidatingInput,
		Actor: actor,
		Draft: draft.Normalized(),
	}

	for state.Stage != Done {
		if err := ctx.Err(); err != nil {
			return p.fail(cfg, state, &Failure{Kind: KindCancelled, Message: "submission abandoned", Err: err})
		}

		cfg.report(state.Stage)

		next, failure := p.step(ctx, state)
		if failure != nil {
			return p.fail(cfg, state, failure)
		}
		state = next
	}

	cfg.report(Done)

	log.WithFields(log.Fields{
		"issue":    state.IssueID.Hex(),
		"reporter": actor.ID,
		"severity": state.Issue.Severity,
		"fallback": len(state.Notices) > 0,
	}).Info("pipeline: issue created")

	issue := state.Issue
	return Result{
		Stage:   Done,
		IssueID: state.IssueID,
		Issue:   &issue,
		Notices: state.Notices,
	}
}

func (p *Pipeline) step(ctx context.Context, s State) (State, *Failure) {
	switch s.Stage {
	case ValidatingInput:
		return p.validate(s)
	case UploadingMedia:
		return p.upload(ctx, s)
	case Classifying:
		return p.classify(ctx, s)
	case Persisting:
		return p.persist(ctx, s)
	default:
		return s, &Failure{Kind: KindPersistence, Message: "unknown stage", Err: fmt.Errorf("unknown stage %q", s.Stage)}
	}
}

func (p *Pipeline) validate(s State) (State, *Failure) {
	if err := s.Draft.Validate(p.rules); err != nil {
		var fields models.ValidationErrors
		if errors.As(err, &fields) {
			return s, &Failure{Kind: KindValidation, Message: "invalid report", Fields: fields, Err: err}
		}
		return s, &Failure{Kind: KindValidation, Message: err.Error(), Err: err}
	}

	if s.Draft.Media != nil {
		s.Stage = UploadingMedia
	} else {
		s.Stage = Classifying
	}
	return s, nil
}

func (p *Pipeline) upload(ctx context.Context, s State) (State, *Failure) {
	if p.blobs == nil {
		return s, &Failure{Kind: KindUpload, Message: "media storage is not configured", Err: errors.New("no blob store")}
	}

	media := s.Draft.Media
	contentType, _, _ := strings.Cut(media.DetectedType(), ";")

	url, err := p.blobs.Put(ctx, "issues/"+s.Actor.ID, media.Data, contentType)
	if err != nil {
		return s, &Failure{Kind: KindUpload, Message: "media upload failed", Err: err}
	}

	s.MediaURL = url
	s.Stage = Classifying
	return s, nil
}

func (p *Pipeline) classify(ctx context.Context, s State) (State, *Failure) {
	category, _ := models.ParseCategory(s.Draft.Category)

	res, outcome := p.classifier.Classify(ctx, classifier.Request{
		Description:  s.Draft.Description,
		Location:     s.Draft.Location,
		Category:     category,
		MediaPayload: classifier.DataURI(s.Draft.Media),
	})
	if outcome.Fallback {
		s.Notices = append(s.Notices, Notice{Level: NoticeInfo, Message: fallbackNotice})
	}

	s.Classification = res
	s.Stage = Persisting
	return s, nil
}

func (p *Pipeline) persist(ctx context.Context, s State) (State, *Failure) {
	category, _ := models.ParseCategory(s.Draft.Category)
	description := s.Draft.Description
	if description == "" {
		description = models.DefaultDescription
	}

	now := p.now()
	issue := models.Issue{
		ReporterID:    s.Actor.ID,
		ReporterName:  s.Actor.Name(),
		ReporterImage: s.Actor.AvatarURL,
		Title:         s.Draft.Title,
		Description:   description,
		Location:      s.Draft.Location,
		Category:      category,
		Severity:      s.Classification.Severity,
		Status:        models.Reported,
		Upvotes:       0,
		MediaURL:      s.MediaURL,
		MediaHint:     s.Classification.Hint,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	id, err := p.issues.Create(context.WithoutCancel(ctx), issue)
	if err != nil {
		return s, &Failure{Kind: KindPersistence, Message: "saving the report failed", Err: err}
	}

	issue.ID = id
	s.IssueID = id
	s.Issue = issue
	s.Stage = Done
	return s, nil
}

func (p *Pipeline) fail(cfg submitConfig, s State, failure *Failure) Result {
	failure.Stage = s.Stage
	failure.MediaURL = s.MediaURL

	cfg.report(Failed)

	entry := log.WithFields(log.Fields{
		"stage":    failure.Stage,
		"kind":     failure.Kind,
		"reporter": s.Actor.ID,
		"mediaUrl": failure.MediaURL,
	})
	switch failure.Kind {
	case KindValidation, KindCancelled:
		entry.Info("pipeline: submission stopped")
	default:
		entry.WithError(failure.Err).Error("pipeline: submission failed")
	}

	return Result{Stage: Failed, Notices: s.Notices, Failure: failure}
}
