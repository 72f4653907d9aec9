package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Pothole     IssueCategory = "Pothole"
	Traffic     IssueCategory = "Traffic"
	Safety      IssueCategory = "Safety"
	Garbage     IssueCategory = "Garbage"
	StreetLight IssueCategory = "Street Light"
	Water       IssueCategory = "Water"
	Other       IssueCategory = "Other"
)

// Categories is the fixed set shared by submission and filtering.
var Categories = []IssueCategory{Pothole, Traffic, Safety, Garbage, StreetLight, Water, Other}

// IssueStatus enum
type IssueStatus string

const (
	Reported   IssueStatus = "Reported"
	InProgress IssueStatus = "In Progress"
	Resolved   IssueStatus = "Resolved"
)

var Statuses = []IssueStatus{Reported, InProgress, Resolved}

// Severity enum
type Severity string

const (
	Low    Severity = "low"
	Medium Severity = "medium"
	High   Severity = "high"
)

var Severities = []Severity{Low, Medium, High}

// DefaultDescription is stored when the reporter leaves the description empty.
const DefaultDescription = "No description provided."

// Issue represents a civic issue reported by a user
type Issue struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReporterID    string             `bson:"reporterId" json:"reporterId"`
	ReporterName  string             `bson:"reporterName" json:"reporterName"`
	ReporterImage string             `bson:"reporterDisplayImage,omitempty" json:"reporterDisplayImage,omitempty"`
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description" json:"description"`
	Location      string             `bson:"location" json:"location"`
	Category      IssueCategory      `bson:"category" json:"category"`
	Severity      Severity           `bson:"severity" json:"severity"`
	Status        IssueStatus        `bson:"status" json:"status"`
	Upvotes       int64              `bson:"upvotes" json:"upvotes"`
	MediaURL      string             `bson:"mediaUrl,omitempty" json:"mediaUrl,omitempty"`
	MediaHint     string             `bson:"mediaHint,omitempty" json:"mediaHint,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Validate checks the entity invariants of a stored issue.
func (i Issue) Validate() error {
	if _, ok := ParseStatus(string(i.Status)); !ok {
		return fmt.Errorf("%w: status %q", ErrInvalidInput, i.Status)
	}
	if _, ok := ParseSeverity(string(i.Severity)); !ok {
		return fmt.Errorf("%w: severity %q", ErrInvalidInput, i.Severity)
	}
	if i.Upvotes < 0 {
		return fmt.Errorf("%w: negative upvotes", ErrInvalidInput)
	}
	if i.UpdatedAt.Before(i.CreatedAt) {
		return fmt.Errorf("%w: updatedAt before createdAt", ErrInvalidInput)
	}
	return nil
}

func ParseCategory(s string) (IssueCategory, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

func ParseStatus(s string) (IssueStatus, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func ParseSeverity(s string) (Severity, bool) {
	for _, sv := range Severities {
		if string(sv) == s {
			return sv, true
		}
	}
	return "", false
}

// CoordinatesLocation renders a device position the way it is stored in Location.
func CoordinatesLocation(lat, lon float64) string {
	return fmt.Sprintf("%.5f,%.5f", lat, lon)
}
