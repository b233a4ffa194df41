package eventbus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_Success(t *testing.T) {
	data := map[string]string{"status": "high"}

	event, err := NewEvent(SubjectTrafficClassified, "traffic-api", data)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, SubjectTrafficClassified, event.Type)
	assert.Equal(t, "traffic-api", event.Source)
	assert.False(t, event.Timestamp.IsZero())

	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, "high", decoded["status"])
}

func TestNewEvent_NilData(t *testing.T) {
	event, err := NewEvent("test.event", "test-source", nil)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), event.Data)
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	_, err := NewEvent("test.event", "test-source", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal event data")
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	a, err := NewEvent("test.event", "src", nil)
	require.NoError(t, err)
	b, err := NewEvent("test.event", "src", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTrafficClassifiedDataOmitsEmptyCause(t *testing.T) {
	data := TrafficClassifiedData{
		Latitude:     19.4326,
		Longitude:    -99.1332,
		Status:       "low",
		ClassifiedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	event, err := NewEvent(SubjectTrafficClassified, "traffic-api", data)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.NotContains(t, decoded, "cause")
	assert.Equal(t, "low", decoded["status"])
}

func TestBusConnectedWithoutConnection(t *testing.T) {
	bus := &Bus{}
	assert.False(t, bus.Connected())
}

func TestBusCheckWithoutConnection(t *testing.T) {
	bus := &Bus{}
	assert.Error(t, bus.Check())
}
