package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to RequestStatus
		ok       bool
	}{
		{RequestPending, RequestInProgress, true},
		{RequestPending, RequestRejected, true},
		{RequestPending, RequestCancelled, true},
		{RequestPending, RequestCompleted, false},
		{RequestAccepted, RequestInProgress, true},
		{RequestInProgress, RequestCompleted, true},
		{RequestInProgress, RequestCancelled, true},
		{RequestInProgress, RequestRejected, false},
		{RequestCompleted, RequestCancelled, false},
		{RequestRejected, RequestInProgress, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestNothingReturnsToPending(t *testing.T) {
	for from := range requestTransitions {
		assert.False(t, CanTransition(from, RequestPending), from)
	}
}

func TestChattable(t *testing.T) {
	assert.False(t, RequestPending.Chattable())
	assert.False(t, RequestRejected.Chattable())
	assert.False(t, RequestCancelled.Chattable())
	assert.True(t, RequestAccepted.Chattable())
	assert.True(t, RequestInProgress.Chattable())
	assert.True(t, RequestCompleted.Chattable())
}

func TestServiceRequestParties(t *testing.T) {
	r := &ServiceRequest{UserID: uuid.New(), WorkerID: uuid.New()}
	u := Principal{Role: RoleUser, ID: r.UserID}
	w := Principal{Role: RoleWorker, ID: r.WorkerID}

	assert.True(t, r.IsParty(u))
	assert.True(t, r.IsParty(w))
	// same id under the other role is a different principal
	assert.False(t, r.IsParty(Principal{Role: RoleWorker, ID: r.UserID}))
	assert.Equal(t, w, r.Counterpart(u))
	assert.Equal(t, u, r.Counterpart(w))
}

func TestRoundRating(t *testing.T) {
	assert.Equal(t, 4.5, RoundRating(9.0/2))
	assert.Equal(t, 3.7, RoundRating(11.0/3))
	assert.Equal(t, 0.0, RoundRating(0))
}

func TestNotificationFor(t *testing.T) {
	id := uuid.New()
	n := NotificationFor(Principal{Role: RoleWorker, ID: id}, "hi", NotifyNewJob, nil)
	assert.Nil(t, n.UserID)
	assert.Equal(t, id, *n.WorkerID)
	assert.Equal(t, Principal{Role: RoleWorker, ID: id}, n.Recipient())
}
