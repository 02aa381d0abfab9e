package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewNotificationRecordAssignsIdentity(t *testing.T) {
	occurred := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	record, err := NewNotificationRecord(NotificationRecordInput{
		Type:     "  " + NotificationTypeLeadSubmitted + " ",
		Data:     json.RawMessage(`{"adresse":"1 rue"}`),
		Source:   NotificationSourcePublicForm,
		Occurred: occurred,
	})
	require.NoError(t, err)
	require.NotEmpty(t, record.ID)
	require.Equal(t, NotificationTypeLeadSubmitted, record.Type)
	require.Equal(t, occurred, record.Timestamp)
	require.False(t, record.Processed)
}

func TestNewNotificationRecordRequiresType(t *testing.T) {
	_, err := NewNotificationRecord(NotificationRecordInput{Type: " "})
	require.ErrorIs(t, err, ErrInvalidNotificationType)
}

func TestNewNotificationRecordDefaultsEmptyPayload(t *testing.T) {
	record, err := NewNotificationRecord(NotificationRecordInput{Type: NotificationTypeFicheAnalyzed})
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(record.Data))
	require.False(t, record.Timestamp.IsZero())
}

func TestNotificationRecordSameIdentity(t *testing.T) {
	stamp := time.Now().UTC()
	testCases := []struct {
		name     string
		left     NotificationRecord
		right    NotificationRecord
		expected bool
	}{
		{name: "matching ids", left: NotificationRecord{ID: "a", Type: "x"}, right: NotificationRecord{ID: "a", Type: "y"}, expected: true},
		{name: "different ids", left: NotificationRecord{ID: "a", Timestamp: stamp}, right: NotificationRecord{ID: "b", Timestamp: stamp}, expected: false},
		{name: "legacy fallback", left: NotificationRecord{Type: "x", Timestamp: stamp}, right: NotificationRecord{ID: "b", Type: "x", Timestamp: stamp}, expected: true},
		{name: "legacy mismatch", left: NotificationRecord{Type: "x", Timestamp: stamp}, right: NotificationRecord{Type: "y", Timestamp: stamp}, expected: false},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			require.Equal(testingT, testCase.expected, testCase.left.SameIdentity(testCase.right))
		})
	}
}
