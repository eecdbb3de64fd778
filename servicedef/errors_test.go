package servicedef

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/laji-form/mock-contract-tests/mocking"
	"github.com/laji-form/mock-contract-tests/syncbridge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func transmit(t *testing.T, err error) error {
	data, jsonErr := json.Marshal(ErrorInfoFrom(err))
	require.NoError(t, jsonErr)
	var info ErrorInfo
	require.NoError(t, json.Unmarshal(data, &info))
	return info.Err()
}

func TestErrorsSurviveTheWire(t *testing.T) {
	key := mocking.NewKey("/autocomplete/taxon", ldvalue.ObjectBuild().Set("q", ldvalue.String("mustarastas")).Build())

	t.Run("duplicate", func(t *testing.T) {
		var target *mocking.DuplicateMockError
		require.ErrorAs(t, transmit(t, &mocking.DuplicateMockError{Key: key}), &target)
		assert.True(t, target.Key.Equal(key))
	})

	t.Run("unmatched", func(t *testing.T) {
		var target *mocking.UnmatchedCallError
		require.ErrorAs(t, transmit(t, &mocking.UnmatchedCallError{Key: mocking.PathKey("/images")}), &target)
		assert.Equal(t, "/images", target.Key.Path)
		assert.False(t, target.Key.HasQuery())
	})

	t.Run("removed", func(t *testing.T) {
		var target *mocking.MockRemovedError
		require.ErrorAs(t, transmit(t, &mocking.MockRemovedError{Key: key, MockID: 3}), &target)
		assert.Equal(t, 3, target.MockID)
	})

	t.Run("exhausted", func(t *testing.T) {
		var target *mocking.QueueExhaustionError
		require.ErrorAs(t, transmit(t, &mocking.QueueExhaustionError{Key: key, Waiting: 2}), &target)
		assert.Equal(t, 2, target.Waiting)

		require.ErrorAs(t, transmit(t, &mocking.QueueExhaustionError{Key: key, Created: 3}), &target)
		assert.Equal(t, 3, target.Created)
		assert.Equal(t, 0, target.Waiting)
		assert.Contains(t, target.Error(), "the 3 mocks created")
	})

	t.Run("settled", func(t *testing.T) {
		var target *mocking.MockSettledError
		require.ErrorAs(t, transmit(t, &mocking.MockSettledError{Key: key, MockID: 1, State: mocking.StateRejected}), &target)
		assert.Equal(t, mocking.StateRejected, target.State)
	})

	t.Run("unknown", func(t *testing.T) {
		var target *mocking.UnknownMockError
		require.ErrorAs(t, transmit(t, &mocking.UnknownMockError{ID: 99}), &target)
		assert.Equal(t, 99, target.ID)
	})

	t.Run("sync timeout", func(t *testing.T) {
		var target *syncbridge.SyncTimeoutError
		err := &syncbridge.SyncTimeoutError{Last: syncbridge.State{Busy: true, Reason: "geocode", PendingJobs: 1}}
		require.ErrorAs(t, transmit(t, err), &target)
		assert.Equal(t, "geocode", target.Last.Reason)
		assert.Equal(t, 1, target.Last.PendingJobs)
	})

	t.Run("wrapped", func(t *testing.T) {
		var target *mocking.MockRemovedError
		wrapped := fmt.Errorf("upload failed: %w", &mocking.MockRemovedError{Key: key, MockID: 4})
		require.ErrorAs(t, transmit(t, wrapped), &target)
		assert.Equal(t, 4, target.MockID)
	})

	t.Run("uncoded", func(t *testing.T) {
		var target *RemoteError
		require.ErrorAs(t, transmit(t, errors.New("boom")), &target)
		assert.Equal(t, CodeInternal, target.Code())
		assert.Equal(t, "boom", target.Info.Message)
	})
}
