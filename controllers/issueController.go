package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"civic-issues/classifier"
	"civic-issues/middlewares"
	"civic-issues/models"
	"civic-issues/pipeline"
	"civic-issues/query"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxPageSize = 100

type Submitter interface {
	Submit(ctx context.Context, actor models.Actor, draft models.Draft, opts ...pipeline.SubmitOption) pipeline.Result
}

type Mutator interface {
	Upvote(ctx context.Context, actor models.Actor, issueID primitive.ObjectID) error
	SetStatus(ctx context.Context, actor models.Actor, issueID primitive.ObjectID, status models.IssueStatus) error
}

type Reader interface {
	Derive(filter query.Filter) query.Views
	Issue(id primitive.ObjectID) (models.Issue, bool)
	Changes(ctx context.Context) <-chan struct{}
}

type IssueDependencies struct {
	Submissions Submitter
	Mutations   Mutator
	Views       Reader
	// Summarizer is optional; the summary endpoint answers 503 without it.
	Summarizer    classifier.Summarizer
	MaxMediaBytes int64
}

type IssueController struct {
	deps IssueDependencies
}

func NewIssueController(deps IssueDependencies) *IssueController {
	return &IssueController{deps: deps}
}

// Submit handles a multipart report: title, description, location,
// category, optional latitude/longitude and the media file.
func (ic *IssueController) Submit(c *gin.Context) {
	actor := middlewares.CurrentActor(c)
	if !actor.Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	draft := models.Draft{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Location:    c.PostForm("location"),
		Category:    c.PostForm("category"),
	}

	// Fall back to the device position when no location was typed
	if strings.TrimSpace(draft.Location) == "" {
		if location, ok := coordinates(c); ok {
			draft.Location = location
		}
	}

	media, err := readMedia(c, ic.deps.MaxMediaBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	draft.Media = media

	result := ic.deps.Submissions.Submit(c.Request.Context(), actor, draft, pipeline.WithProgress(func(p pipeline.Progress) {
		log.WithFields(log.Fields{"reporter": actor.ID, "stage": p.Stage}).Debug(p.Message)
	}))

	if result.OK() {
		c.JSON(http.StatusCreated, gin.H{
			"message": result.Message(),
			"issue":   result.Issue,
			"notices": result.Notices,
		})
		return
	}

	c.JSON(failureStatus(result.Failure.Kind), gin.H{
		"error":   result.Message(),
		"failure": result.Failure,
	})
}

func coordinates(c *gin.Context) (string, bool) {
	latStr, lonStr := c.PostForm("latitude"), c.PostForm("longitude")
	if latStr == "" || lonStr == "" {
		return "", false
	}

	lat, err := cast.ToFloat64E(latStr)
	if err != nil || lat < -90 || lat > 90 {
		return "", false
	}
	lon, err := cast.ToFloat64E(lonStr)
	if err != nil || lon < -180 || lon > 180 {
		return "", false
	}

	return models.CoordinatesLocation(lat, lon), true
}

// readMedia reads at most limit+1 bytes so oversized uploads still reach
// validation, which reports them.
func readMedia(c *gin.Context, limit int64) (*models.Media, error) {
	header, err := c.FormFile("media")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid media upload: %w", err)
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("invalid media upload: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if limit > 0 {
		reader = io.LimitReader(file, limit+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading media: %w", err)
	}

	return &models.Media{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// List returns the filtered issues plus the category index and the
// overall summary. page and limit are optional.
func (ic *IssueController) List(c *gin.Context) {
	var filter query.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ic.respondViews(c, ic.deps.Views.Derive(filter))
}

// Mine lists the caller's own reports.
func (ic *IssueController) Mine(c *gin.Context) {
	actor := middlewares.CurrentActor(c)
	if !actor.Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var filter query.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter.ReporterID = actor.ID

	ic.respondViews(c, ic.deps.Views.Derive(filter))
}

func (ic *IssueController) respondViews(c *gin.Context, views query.Views) {
	total := len(views.Issues)
	page := max(cast.ToInt(c.DefaultQuery("page", "1")), 1)
	limit := cast.ToInt(c.Query("limit"))
	if limit <= 0 || limit > maxPageSize {
		limit = total
	}

	issues := views.Issues
	totalPages := 1
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
		start := min((page-1)*limit, total)
		issues = issues[start:min(start+limit, total)]
	}

	c.JSON(http.StatusOK, gin.H{
		"issues":      issues,
		"totalIssues": total,
		"totalPages":  totalPages,
		"currentPage": page,
		"categories":  views.Categories,
		"summary":     views.Summary,
	})
}

// Stream pushes the derived views for the request's filter as server-sent
// events, once immediately and again after every change.
func (ic *IssueController) Stream(c *gin.Context) {
	var filter query.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	changes := ic.deps.Views.Changes(ctx)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	send := func() {
		c.SSEvent("views", ic.deps.Views.Derive(filter))
		c.Writer.Flush()
	}

	send()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			send()
		}
	}
}

func (ic *IssueController) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": ic.deps.Views.Derive(query.Filter{}).Categories})
}

func issueID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// Get retrieves an issue by its ID
func (ic *IssueController) Get(c *gin.Context) {
	id, ok := issueID(c)
	if !ok {
		return
	}

	issue, found := ic.deps.Views.Issue(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}

	c.JSON(http.StatusOK, issue)
}

// Upvote queues a vote; the new count shows up in the next snapshot.
// The id is not checked against the snapshot, which may not yet hold an
// issue created moments ago; unknown ids fail in the write, not here.
func (ic *IssueController) Upvote(c *gin.Context) {
	id, ok := issueID(c)
	if !ok {
		return
	}

	if err := ic.deps.Mutations.Upvote(c.Request.Context(), middlewares.CurrentActor(c), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Upvote recorded"})
}

// SetStatus queues a status change for privileged actors. Like Upvote it
// accepts ids the snapshot has not caught up with yet.
func (ic *IssueController) SetStatus(c *gin.Context) {
	id, ok := issueID(c)
	if !ok {
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := models.IssueStatus(input.Status)
	if err := ic.deps.Mutations.SetStatus(c.Request.Context(), middlewares.CurrentActor(c), id, status); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Status update accepted", "status": status})
}

// Summary asks the classifier for a short operator-facing summary.
func (ic *IssueController) Summary(c *gin.Context) {
	id, ok := issueID(c)
	if !ok {
		return
	}

	if ic.deps.Summarizer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Summaries are not configured"})
		return
	}

	issue, found := ic.deps.Views.Issue(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}

	summary, err := ic.deps.Summarizer.Summarize(c.Request.Context(), reportDetails(issue))
	if err != nil {
		log.WithError(err).WithField("issue", id.Hex()).Warn("summary generation failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to generate summary"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": issue.ID, "summary": summary})
}

func reportDetails(issue models.Issue) string {
	return fmt.Sprintf(
		"Title: %s\nCategory: %s\nSeverity: %s\nStatus: %s\nLocation: %s\nUpvotes: %d\nDescription: %s",
		issue.Title, issue.Category, issue.Severity, issue.Status, issue.Location, issue.Upvotes, issue.Description,
	)
}
