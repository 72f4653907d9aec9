// Package classifier assigns a severity tier and a short media hint to new reports.
package classifier

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"civic-issues/models"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=classifier.go -destination=../mocks/mock_classifier.go -package=mocks

const (
	FallbackHint   = "user provided"
	DefaultTimeout = 10 * time.Second
)

var errNoService = errors.New("classification service not configured")

type Request struct {
	Description string
	Location    string
	Category    models.IssueCategory
	// MediaPayload is a data URI: data:<mime>;base64,<payload>. Empty when no media is attached.
	MediaPayload string
}

type Result struct {
	Severity models.Severity
	Hint     string
}

// Service is one round trip to the external classification model.
type Service interface {
	Classify(ctx context.Context, req Request) (Result, error)
}

// Summarizer condenses a report for operators.
type Summarizer interface {
	Summarize(ctx context.Context, details string) (string, error)
}

// Fallback is used whenever the service cannot produce a usable result.
func Fallback() Result {
	return Result{Severity: models.Low, Hint: FallbackHint}
}

// Outcome tells the caller whether the fallback was used and why.
type Outcome struct {
	Fallback bool
	Err      error
}

// Adapter bounds a single classification attempt and never fails: errors,
// timeouts and invalid answers all degrade to Fallback.
type Adapter struct {
	service Service
	timeout time.Duration
}

func NewAdapter(service Service, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adapter{service: service, timeout: timeout}
}

func (a *Adapter) Classify(ctx context.Context, req Request) (Result, Outcome) {
	if a == nil || a.service == nil {
		return Fallback(), Outcome{Fallback: true, Err: errNoService}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := a.call(ctx, req)
	if err == nil {
		severity, ok := models.ParseSeverity(strings.ToLower(strings.TrimSpace(string(res.Severity))))
		if ok {
			return Result{Severity: severity, Hint: strings.TrimSpace(res.Hint)}, Outcome{}
		}
		err = fmt.Errorf("unexpected severity %q", res.Severity)
	}

	log.WithFields(log.Fields{
		"category": req.Category,
		"error":    err,
	}).Warn("classifier: falling back to default classification")

	return Fallback(), Outcome{Fallback: true, Err: err}
}

type reply struct {
	res Result
	err error
}

// call returns when the service answers or ctx ends, whichever comes
// first, even if the service ignores ctx.
func (a *Adapter) call(ctx context.Context, req Request) (Result, error) {
	done := make(chan reply, 1)
	go func() {
		res, err := a.service.Classify(ctx, req)
		done <- reply{res: res, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			r.err = ctx.Err()
		}
		return r.res, r.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// DataURI encodes media the way the classification service expects it.
func DataURI(media *models.Media) string {
	if media == nil || len(media.Data) == 0 {
		return ""
	}
	return "data:" + media.DetectedType() + ";base64," + base64.StdEncoding.EncodeToString(media.Data)
}

func parseDataURI(uri string) (mimeType, data string, ok bool) {
	rest, found := strings.CutPrefix(uri, "data:")
	if !found {
		return "", "", false
	}
	header, data, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mimeType, found = strings.CutSuffix(header, ";base64")
	if !found {
		return "", "", false
	}
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return mimeType, data, true
}
