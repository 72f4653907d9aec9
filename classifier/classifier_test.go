package classifier_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"civic-issues/classifier"
	"civic-issues/mocks"
	"civic-issues/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var request = classifier.Request{
	Description: "Deep pothole",
	Location:    "Main St",
	Category:    models.Pothole,
}

func TestAdapter_ReturnsServiceResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := mocks.NewMockService(ctrl)
	service.EXPECT().
		Classify(gomock.Any(), request).
		Return(classifier.Result{Severity: "High", Hint: " road pothole "}, nil)

	res, outcome := classifier.NewAdapter(service, time.Second).Classify(context.Background(), request)

	assert.False(t, outcome.Fallback)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, classifier.Result{Severity: models.High, Hint: "road pothole"}, res)
}

func TestAdapter_FallbackOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := mocks.NewMockService(ctrl)
	service.EXPECT().
		Classify(gomock.Any(), gomock.Any()).
		Return(classifier.Result{}, errors.New("quota exceeded"))

	res, outcome := classifier.NewAdapter(service, time.Second).Classify(context.Background(), request)

	assert.True(t, outcome.Fallback)
	assert.ErrorContains(t, outcome.Err, "quota exceeded")
	assert.Equal(t, models.Low, res.Severity)
	assert.Equal(t, "user provided", res.Hint)
}

func TestAdapter_FallbackOnTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := mocks.NewMockService(ctrl)
	service.EXPECT().
		Classify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ classifier.Request) (classifier.Result, error) {
			<-ctx.Done()
			return classifier.Result{}, ctx.Err()
		})

	start := time.Now()
	res, outcome := classifier.NewAdapter(service, 20*time.Millisecond).Classify(context.Background(), request)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, outcome.Fallback)
	assert.ErrorIs(t, outcome.Err, context.DeadlineExceeded)
	assert.Equal(t, classifier.Fallback(), res)
}

// stuckService never looks at its context.
type stuckService struct {
	release chan struct{}
}

func (s stuckService) Classify(context.Context, classifier.Request) (classifier.Result, error) {
	<-s.release
	return classifier.Result{Severity: models.High, Hint: "late"}, nil
}

func TestAdapter_TimeoutWithServiceIgnoringContext(t *testing.T) {
	service := stuckService{release: make(chan struct{})}
	t.Cleanup(func() { close(service.release) })

	start := time.Now()
	res, outcome := classifier.NewAdapter(service, 50*time.Millisecond).Classify(context.Background(), request)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, outcome.Fallback)
	assert.ErrorIs(t, outcome.Err, context.DeadlineExceeded)
	assert.Equal(t, classifier.Fallback(), res)
}

func TestAdapter_FallbackOnUnknownSeverity(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := mocks.NewMockService(ctrl)
	service.EXPECT().
		Classify(gomock.Any(), gomock.Any()).
		Return(classifier.Result{Severity: "catastrophic", Hint: "fire"}, nil)

	res, outcome := classifier.NewAdapter(service, time.Second).Classify(context.Background(), request)

	assert.True(t, outcome.Fallback)
	assert.Equal(t, classifier.Fallback(), res)
}

func TestAdapter_WithoutService(t *testing.T) {
	res, outcome := classifier.NewAdapter(nil, 0).Classify(context.Background(), request)

	require.True(t, outcome.Fallback)
	assert.Error(t, outcome.Err)
	assert.Equal(t, classifier.Fallback(), res)
}

func TestDataURI(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n")

	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", classifier.DataURI(&models.Media{Data: png}))
	assert.Empty(t, classifier.DataURI(nil))
}
